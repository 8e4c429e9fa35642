package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"proptrack/server/internal/models"
)

const (
	minFee = 0
	maxFee = 1000
)

// Validator applies the write-path rules shared by the HTTP handlers and
// the CLI.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// NewProperty validates a create payload and returns the messages for
// every failed rule.
func (v *Validator) NewProperty(p *models.NewProperty) []string {
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

// Update validates a sparse update. Status must always be one of the known
// values; fees must stay within range when set.
func (v *Validator) Update(u *models.PropertyUpdate) []string {
	var msgs []string
	if u.Status != nil && !u.Status.Valid() {
		msgs = append(msgs, fmt.Sprintf("status must be one of %s", statusList()))
	}

	fees := []struct {
		name string
		val  models.NullableFloat
	}{
		{"service_charge", u.ServiceCharge},
		{"cleaning_fee", u.CleaningFee},
		{"commission_charge", u.CommissionCharge},
	}
	for _, fee := range fees {
		if fee.val.Value == nil {
			continue
		}
		if *fee.val.Value < minFee || *fee.val.Value > maxFee {
			msgs = append(msgs, fmt.Sprintf("%s must be between %d and %d", fee.name, minFee, maxFee))
		}
	}
	return msgs
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func statusList() string {
	names := make([]string, len(models.AllStatuses))
	for i, s := range models.AllStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
