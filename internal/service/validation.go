package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/teamcal/teamcal-api/internal/recurrence"
)

// NewValidator builds the shared validator with the calendar-specific rules
// registered: "hhmm" for zero-padded 24h times and "caldate" for canonical
// YYYY-MM-DD dates.
func NewValidator() *validator.Validate {
	v := validator.New()

	// Registration only fails for empty tag names.
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return recurrence.ValidTimeOfDay(fl.Field().String())
	})
	_ = v.RegisterValidation("caldate", func(fl validator.FieldLevel) bool {
		_, err := recurrence.ParseDate(fl.Field().String())
		return err == nil
	})

	return v
}
