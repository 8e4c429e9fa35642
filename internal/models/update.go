package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidUpdate = errors.New("invalid update payload")

// NullableFloat is an optional number inside a sparse update. Set reports
// whether the key was present at all; a present null leaves Value nil.
type NullableFloat struct {
	Set   bool
	Value *float64
}

// PropertyUpdate is a sparse update. Only recognised keys that are present
// in the payload end up in the update set; everything else is ignored.
type PropertyUpdate struct {
	Status           *Status
	ServiceCharge    NullableFloat
	CleaningFee      NullableFloat
	CommissionCharge NullableFloat
	IsFavorite       *bool
}

// DecodePropertyUpdate reads a JSON object into a PropertyUpdate
func DecodePropertyUpdate(data []byte) (*PropertyUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidUpdate)
	}

	u := &PropertyUpdate{}
	if v, ok := raw["status"]; ok {
		var s string
		if isNull(v) || json.Unmarshal(v, &s) != nil {
			return nil, fmt.Errorf("%w: status must be a string", ErrInvalidUpdate)
		}
		status := Status(s)
		u.Status = &status
	}
	if v, ok := raw["is_favorite"]; ok {
		var b bool
		if isNull(v) || json.Unmarshal(v, &b) != nil {
			return nil, fmt.Errorf("%w: is_favorite must be a boolean", ErrInvalidUpdate)
		}
		u.IsFavorite = &b
	}

	fees := []struct {
		key string
		dst *NullableFloat
	}{
		{"service_charge", &u.ServiceCharge},
		{"cleaning_fee", &u.CleaningFee},
		{"commission_charge", &u.CommissionCharge},
	}
	for _, fee := range fees {
		v, ok := raw[fee.key]
		if !ok {
			continue
		}
		fee.dst.Set = true
		if isNull(v) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidUpdate, fee.key)
		}
		fee.dst.Value = &f
	}

	return u, nil
}

// Empty reports whether the update carries no recognised field
func (u *PropertyUpdate) Empty() bool {
	return u.Status == nil && u.IsFavorite == nil &&
		!u.ServiceCharge.Set && !u.CleaningFee.Set && !u.CommissionCharge.Set
}

// Columns returns the column/value pairs to write
func (u *PropertyUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = string(*u.Status)
	}
	if u.IsFavorite != nil {
		cols["is_favorite"] = *u.IsFavorite
	}
	if u.ServiceCharge.Set {
		cols["service_charge"] = u.ServiceCharge.Value
	}
	if u.CleaningFee.Set {
		cols["cleaning_fee"] = u.CleaningFee.Value
	}
	if u.CommissionCharge.Set {
		cols["commission_charge"] = u.CommissionCharge.Value
	}
	return cols
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
