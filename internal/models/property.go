package models

import "time"

// Status is the lifecycle state of a listing. Deletion is modelled as a
// status, rows are never removed.
type Status string

const (
	StatusAvailable Status = "available"
	StatusContacted Status = "contacted"
	StatusTalking   Status = "talking"
	StatusReserved  Status = "reserved"
	StatusDeleted   Status = "deleted"
)

// AllStatuses lists every valid status in display order
var AllStatuses = []Status{
	StatusAvailable,
	StatusContacted,
	StatusTalking,
	StatusReserved,
	StatusDeleted,
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a raw string into a Status
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// Property is a single listing.
type Property struct {
	ID               int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string   `gorm:"not null" json:"name"`
	PricePerMonth    float64  `gorm:"not null" json:"price_per_month"`
	Location         string   `gorm:"not null" json:"location"`
	Rooms            float64  `gorm:"not null" json:"rooms"`
	Bathrooms        float64  `gorm:"not null" json:"bathrooms"`
	SquareMeters     *float64 `json:"square_meters"`
	Status           Status   `gorm:"type:varchar(20);not null;default:'available';index;check:chk_properties_status,status IN ('available','contacted','talking','reserved','deleted')" json:"status"`
	ServiceCharge    *float64 `json:"service_charge"`
	CleaningFee      *float64 `json:"cleaning_fee"`
	CommissionCharge *float64 `json:"commission_charge"`
	Latitude         float64  `gorm:"not null;index:idx_properties_coordinates,priority:1" json:"latitude"`
	Longitude        float64  `gorm:"not null;index:idx_properties_coordinates,priority:2" json:"longitude"`
	IsApproximated   bool     `gorm:"not null;default:false" json:"is_approximated"`
	IsFavorite       bool     `gorm:"not null;default:false" json:"is_favorite"`
	URL              string   `gorm:"column:url;not null" json:"url"`

	CreatedAt time.Time `gorm:"index:idx_properties_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name
func (Property) TableName() string {
	return "properties"
}

// NewProperty is the payload accepted when a single listing is created.
// Identity, status, fees and coordinates are not client-settable.
type NewProperty struct {
	Name           string   `json:"name" validate:"required,min=3,max=100"`
	PricePerMonth  float64  `json:"price_per_month" validate:"required,min=1,max=100000"`
	Location       string   `json:"location" validate:"required,min=2"`
	Rooms          float64  `json:"rooms" validate:"required,min=1,max=20"`
	Bathrooms      float64  `json:"bathrooms" validate:"required,min=1,max=10"`
	SquareMeters   *float64 `json:"square_meters" validate:"omitempty,min=1,max=1000"`
	URL            string   `json:"url" validate:"required,url"`
	IsApproximated bool     `json:"is_approximated"`
}

// ToProperty builds a fully populated listing from the payload and the
// geocoded coordinates.
func (n NewProperty) ToProperty(lat, lon float64) *Property {
	return &Property{
		Name:           n.Name,
		PricePerMonth:  n.PricePerMonth,
		Location:       n.Location,
		Rooms:          n.Rooms,
		Bathrooms:      n.Bathrooms,
		SquareMeters:   n.SquareMeters,
		Status:         StatusAvailable,
		Latitude:       lat,
		Longitude:      lon,
		IsApproximated: n.IsApproximated,
		IsFavorite:     false,
		URL:            n.URL,
	}
}

// ValidationError collects every problem found in one import row.
// Row is 1-based and counts data rows only.
type ValidationError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}
