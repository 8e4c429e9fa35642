package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"proptrack/server/internal/models"
)

var (
	requiredStringFields  = []string{"name", "location", "url"}
	requiredNumericFields = []string{"price_per_month", "rooms", "bathrooms"}
	optionalNumericFields = []string{"square_meters", "service_charge", "cleaning_fee", "commission_charge"}
)

// ValidateRow checks one import row and reports every rule it breaks.
// It returns nil when the row is valid.
func ValidateRow(row map[string]string, index int) *models.ValidationError {
	var errs []string

	for _, field := range requiredStringFields {
		if strings.TrimSpace(row[field]) == "" {
			errs = append(errs, fmt.Sprintf("%s is required and must be a string", field))
		}
	}

	for _, field := range requiredNumericFields {
		if _, err := ParseNumber(row[field]); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a valid number", field))
		}
	}

	for _, field := range optionalNumericFields {
		if _, err := ParseOptionalNumber(row[field]); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a valid number if provided", field))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &models.ValidationError{Row: index, Errors: errs}
}

// ParseNumber parses a finite number. Empty input is not a number.
func ParseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return v, nil
}

// ParseOptionalNumber returns nil for empty input
func ParseOptionalNumber(raw string) (*float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := ParseNumber(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
