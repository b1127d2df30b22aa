package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Clock time, HH:MM 24h
	validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return recurrence.ValidTime(fl.Field().String())
	})

	// Calendar date, YYYY-MM-DD or RFC 3339
	validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := recurrence.ParseDate(fl.Field().String())
		return err == nil
	})

	// Recurrence pattern
	validate.RegisterValidation("pattern", func(fl validator.FieldLevel) bool {
		_, err := recurrence.ParsePattern(fl.Field().String())
		return err == nil
	})
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string
	Message string
}

// Errors validates a struct and returns field errors in declaration order
func Errors(s interface{}) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: "Invalid request"}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	fieldErrors := Errors(s)
	if len(fieldErrors) == 0 {
		return nil
	}

	errs := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		if _, exists := errs[fe.Field]; !exists {
			errs[fe.Field] = fe.Message
		}
	}
	return errs
}

// FirstError returns "<field>: <message>" for the first failed rule, or "".
func FirstError(s interface{}) string {
	fieldErrors := Errors(s)
	if len(fieldErrors) == 0 {
		return ""
	}
	fe := fieldErrors[0]
	if fe.Field == "" {
		return fe.Message
	}
	return fe.Field + ": " + fe.Message
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short (min: " + fe.Param() + ")"
	case "max":
		return "Value is too long (max: " + fe.Param() + ")"
	case "gte":
		return "Value must be at least " + fe.Param()
	case "lte":
		return "Value must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "uuid", "uuid4":
		return "Invalid UUID"
	case "url":
		return "Invalid URL format"
	case "hhmm":
		return "Invalid time. Must be HH:MM"
	case "isodate":
		return "Invalid date. Must be YYYY-MM-DD"
	case "pattern":
		return "Invalid pattern. Must be: WEEKLY, BIWEEKLY, MONTHLY, or CUSTOM"
	case "required_if":
		return "This field is required here"
	default:
		return "Invalid value"
	}
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
