package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"rollbook/internal/apperr"
	"rollbook/internal/auth"
	"rollbook/internal/calendar"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator:
// pin (four digits), isodate (YYYY-MM-DD) and cohort (YYYY-YYYY or YYYY-YY).
// Blank values pass these rules; pair them with required where a value is
// mandatory.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("pin", blankOr(auth.ValidatePIN))
		_ = v.RegisterValidation("isodate", blankOr(func(s string) error {
			_, err := calendar.Parse(s)
			return err
		}))
		_ = v.RegisterValidation("cohort", blankOr(func(s string) error {
			_, err := calendar.ParseCohort(s)
			return err
		}))
	})
}

func blankOr(check func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.TrimSpace(s) == "" || check(s) == nil
	}
}

// fieldName reports the wire name of a field so messages match the request.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// bindError turns a binding failure into a validation error with a readable message.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "pin":
		return "PIN must be exactly 4 digits"
	case "isodate":
		return name + " must be a date in YYYY-MM-DD format"
	case "cohort":
		return name + " must look like YYYY-YYYY"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return name + " is invalid"
	}
}
