// Package validator validates configuration structs with go-playground/validator.
//
// On top of the built-in tags it registers "alias", accepted by connection aliases: a letter followed by letters,
// digits, '_' or '-'. Aliases end up in log fields, error messages and span attributes.
package validator

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Validator wraps a shared *validator.Validate, which caches the struct metadata it has seen.
type Validator struct {
	validate *validator.Validate
}

var (
	instance     *Validator
	instanceOnce sync.Once
)

// NewValidator returns the process-wide Validator.
func NewValidator() *Validator {
	instanceOnce.Do(func() {
		validate := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
			return aliasPattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(err)
		}

		instance = &Validator{validate: validate}
	})

	return instance
}

// ValidateStruct returns one entry per failed constraint of str, none when it is valid.
func (v *Validator) ValidateStruct(str any) []*ValidationErrorResponse {
	var details []*ValidationErrorResponse

	var validationErrors validator.ValidationErrors
	if err := v.validate.Struct(str); errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			details = append(details, &ValidationErrorResponse{
				FailedField: fieldErr.StructNamespace(),
				Tag:         fieldErr.Tag(),
				Value:       fieldErr.Param(),
			})
		}
	}

	return details
}

// Validate is ValidateStruct returning a *ValidationError, or nil when str is valid.
func (v *Validator) Validate(str any) error {
	if details := v.ValidateStruct(str); len(details) > 0 {
		return NewValidationError(details)
	}

	return nil
}
