package listing

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"proptrack/server/internal/models"
)

var ErrInvalidQuery = errors.New("invalid filter query")

type SortField string

const (
	SortByPrice  SortField = "price_per_month"
	SortByStatus SortField = "status"
	SortByRooms  SortField = "rooms"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type SortOption struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// FilterState is the active selection applied to the listing collection.
// Zero values disable the corresponding filter.
type FilterState struct {
	FavoritesOnly bool            `json:"favorites_only"`
	Statuses      []models.Status `json:"statuses"`
	Rooms         *float64        `json:"rooms"`
	Sort          *SortOption     `json:"sort"`
}

// Apply filters by favorites, then status, then exact room count, and then
// sorts by the selected key. The input slice is left untouched and equal
// elements keep their original order.
func Apply(properties []models.Property, state FilterState) []models.Property {
	result := make([]models.Property, 0, len(properties))

	statuses := make(map[models.Status]struct{}, len(state.Statuses))
	for _, s := range state.Statuses {
		statuses[s] = struct{}{}
	}

	for _, p := range properties {
		if state.FavoritesOnly && !p.IsFavorite {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[p.Status]; !ok {
				continue
			}
		}
		if state.Rooms != nil && p.Rooms != *state.Rooms {
			continue
		}
		result = append(result, p)
	}

	if state.Sort != nil {
		less := lessFunc(*state.Sort)
		if less != nil {
			sort.SliceStable(result, func(i, j int) bool {
				return less(result[i], result[j])
			})
		}
	}

	return result
}

func lessFunc(opt SortOption) func(a, b models.Property) bool {
	var asc func(a, b models.Property) bool
	switch opt.Field {
	case SortByPrice:
		asc = func(a, b models.Property) bool { return a.PricePerMonth < b.PricePerMonth }
	case SortByStatus:
		asc = func(a, b models.Property) bool { return a.Status < b.Status }
	case SortByRooms:
		asc = func(a, b models.Property) bool { return a.Rooms < b.Rooms }
	default:
		return nil
	}

	if opt.Direction == Descending {
		return func(a, b models.Property) bool { return asc(b, a) }
	}
	return asc
}

// ParseQuery builds a FilterState from request query parameters:
// favorites=true, status=a&status=b or status=a,b, rooms=N,
// sort=<field> and direction=asc|desc.
func ParseQuery(q url.Values) (FilterState, error) {
	var state FilterState

	if raw := q.Get("favorites"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return state, fmt.Errorf("%w: favorites must be true or false", ErrInvalidQuery)
		}
		state.FavoritesOnly = v
	}

	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := models.ParseStatus(part)
			if !ok {
				return state, fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, part)
			}
			state.Statuses = append(state.Statuses, status)
		}
	}

	if raw := q.Get("rooms"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return state, fmt.Errorf("%w: rooms must be a number", ErrInvalidQuery)
		}
		state.Rooms = &v
	}

	if raw := q.Get("sort"); raw != "" {
		opt := SortOption{Field: SortField(raw), Direction: Ascending}
		switch opt.Field {
		case SortByPrice, SortByStatus, SortByRooms:
		default:
			return state, fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, raw)
		}
		if dir := q.Get("direction"); dir != "" {
			switch Direction(dir) {
			case Ascending, Descending:
				opt.Direction = Direction(dir)
			default:
				return state, fmt.Errorf("%w: direction must be asc or desc", ErrInvalidQuery)
			}
		}
		state.Sort = &opt
	}

	return state, nil
}
