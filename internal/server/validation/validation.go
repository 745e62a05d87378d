// Package validation checks request DTOs and uploaded files before any
// transaction or remote call is made. Failures are apperr.BadRequest values
// carrying the client-facing message and its parameters.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]+(?:[._][a-zA-Z0-9]+)*$`)
	periodRe   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Validator wraps a configured validator.Validate. It is safe for
// concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report JSON names so messages match what the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return ValidPeriod(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return permissions.Role(fl.Field().String()).Valid()
	})

	return &Validator{v: v}
}

// ValidPeriod reports whether s is a YYYY-MM period.
func ValidPeriod(s string) bool {
	return periodRe.MatchString(s)
}

// Struct validates s and converts the first failing field into a
// BadRequest.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Internal("validation failed", err)
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) *apperr.Error {
	value := valueString(fe)

	switch fe.Field() {
	case "username":
		if fe.Tag() == "username" {
			return apperr.BadRequest("Invalid username: $1", value)
		}
		return apperr.BadRequest("The username must be between 1 and 50 characters long")
	case "name":
		return apperr.BadRequest("The name must be between 1 and 50 characters long")
	case "email":
		return apperr.BadRequest("Invalid email: $1", value)
	case "password":
		return apperr.BadRequest("Password must be at least 8 characters long")
	case "date":
		return apperr.BadRequest("Invalid date format: $1", value)
	case "limit":
		return apperr.BadRequest("Limit must be between 1 and 25")
	case "offset":
		return apperr.BadRequest("Offset must be greater than or equal to 0")
	case "role":
		return apperr.BadRequest("Invalid role: $1", value)
	}
	return apperr.BadRequest("Invalid value for $1", fe.Field())
}

func valueString(fe validator.FieldError) string {
	v := reflect.ValueOf(fe.Value())
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fe.Param()
}
