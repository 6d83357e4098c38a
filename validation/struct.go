package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("catalogid", func(fl validator.FieldLevel) bool {
		return idRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	// Report fields by their JSON name so messages match what clients send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError is one failed struct tag
type FieldError struct {
	Field   string
	Message string
}

// ValidateStruct checks s against its validate tags. It returns nil when s
// is valid.
func ValidateStruct(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: fieldPath(e), Message: formatFieldError(e)})
	}
	return out
}

// JoinFieldErrors renders field errors as one error, or nil when empty
func JoinFieldErrors(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Message
	}
	return errors.New(strings.Join(parts, "; "))
}

// fieldPath drops the root struct name: "Medication.alternatives[0].id"
// becomes "alternatives[0].id".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e)

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "catalogid":
		return fmt.Sprintf("%s may only contain letters, numbers and . _ : -", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is missing", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
