package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerValidatorOnce sync.Once
	registerValidatorErr  error
)

// useJSONFieldNames installs the request validation rules on gin's validator.
// The result of the first call is returned on every later call.
func useJSONFieldNames() error {
	registerValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerValidatorErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		registerValidatorErr = registerValidations(v)
	})
	return registerValidatorErr
}

// registerValidations makes errors name fields by their JSON tag and adds the
// notblank rule.
func registerValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return fmt.Errorf("register notblank: %w", err)
	}
	return nil
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Field(), Rule: fe.Tag()}
	}
	return out
}

func describeFieldErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, fe := range errs {
		switch fe.Rule {
		case "required", "notblank":
			parts[i] = fmt.Sprintf("field '%s' is required", fe.Field)
		case "max":
			parts[i] = fmt.Sprintf("field '%s' is too long", fe.Field)
		default:
			parts[i] = fmt.Sprintf("field '%s' failed %s", fe.Field, fe.Rule)
		}
	}
	return strings.Join(parts, "; ")
}
