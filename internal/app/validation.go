package app

import (
	"errors"
	"reflect"
	"strings"

	"quiz-attempt-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and reports the first failure as a validation error.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Validationf("invalid input")
	}
	return domain.Validationf("%s", describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	// Drop the root struct name: "QuizInput.questions[0].text" -> "questions[0].text".
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return field + " must be at least " + fe.Param() + " characters"
		case reflect.Slice:
			return field + " must have at least " + fe.Param() + " entries"
		}
		return field + " must be at least " + fe.Param()
	case "oneof":
		return field + " must be one of " + fe.Param()
	default:
		return field + " is invalid"
	}
}
