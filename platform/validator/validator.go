// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the domain tags registered:
// "pan" validates a normalized PAN, "aadhaar" a normalized Aadhaar number.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return panPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("aadhaar", func(fl validator.FieldLevel) bool {
		return aadhaarPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
