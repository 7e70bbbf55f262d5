package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks input rejected by validation
var ErrInvalid = errors.New("invalid input")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("absurl", func(fl validator.FieldLevel) bool {
		return ValidURL(fl.Field().String())
	})
	return v
}

// ValidURL reports whether s parses as an absolute URL
func ValidURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Host != "" || u.Opaque != "" || u.Path != "")
}

// Validate checks a new resource before it is stored
func (r NewResource) Validate() error {
	return validateStruct(r)
}

// Validate checks a partial update before it is applied
func (u ResourceUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if u.URL != nil && !ValidURL(*u.URL) {
		return fmt.Errorf("%w: url must be a valid absolute URL", ErrInvalid)
	}
	return validateStruct(u)
}

func validateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "absurl":
		return fmt.Sprintf("%s must be a valid absolute URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
