package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func validateStruct(target any) error {
	if err := validate.Struct(target); err != nil {
		return translate(err)
	}
	return nil
}

// ValidateVar checks a single value against validator tags and names it field in the message.
func ValidateVar(field string, value any, tags string) error {
	if err := validate.Var(value, tags); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return NewValidationError("%s", message(field, verrs[0]))
		}
		return NewValidationError("%s is invalid", field)
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("%v", err)
	}
	return NewValidationError("%s", message(verrs[0].Field(), verrs[0]))
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "url":
		return field + " must be a valid URL"
	case "email":
		return field + " must be a valid email address"
	default:
		return field + " is invalid"
	}
}
