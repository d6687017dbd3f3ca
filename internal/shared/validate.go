package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// CollectFieldErrors converts validator failures into a ValidationError with
// one message per field. Non-validator errors pass through unchanged.
func CollectFieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", fe.Field())
	case "email":
		return fmt.Sprintf("the %s field must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("the %s field may not be greater than %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("the %s field must be at least %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("the %s field confirmation does not match", fe.Field())
	default:
		return fmt.Sprintf("the %s field is invalid", fe.Field())
	}
}
