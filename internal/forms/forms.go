// Package forms decodes and validates the HTML forms posted to the server.
//
// Every form is a struct of string fields tagged with its input name and its
// validation rules. Decoding trims and sanitises the raw values; validation
// stops at the first failing field and reports the message the page shows.
package forms

import (
	"errors"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"expensia/internal/core"
)

// Error is a validation failure ready to be shown to the user.
type Error struct {
	Message string
	Field   string
}

func (e *Error) Error() string { return e.Message }

// IsValidation reports whether err is a form validation failure.
func IsValidation(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// messenger maps a failed rule to the message the page shows.
type messenger interface {
	message(fe validator.FieldError) string
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
			_, err := core.ParseFrequencyLabel(fl.Field().String())
			return err == nil
		})
		v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return slices.Contains(core.SupportedCurrencies, fl.Field().String())
		})
		v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
			return slices.Contains(core.SupportedTimezones, fl.Field().String())
		})
		v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			_, err := core.ParseAmount(fl.Field().String())
			return err == nil
		})
		v.RegisterValidation("signed_amount", func(fl validator.FieldLevel) bool {
			_, err := core.ParseSignedAmount(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// check validates f and converts the first failure into an *Error.
func check(f messenger) error {
	err := engine().Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	return &Error{Message: f.message(first), Field: first.Field()}
}

// decode copies values into the string fields of dst by their form tag.
func decode(values url.Values, dst any) {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" || field.Type.Kind() != reflect.String {
			continue
		}
		raw := values.Get(name)
		if strings.Contains(field.Tag.Get("form"), ",raw") {
			rv.Field(i).SetString(raw)
			continue
		}
		rv.Field(i).SetString(sanitizeInput(raw))
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parse decodes and validates in one step.
func parse[T any, PT interface {
	*T
	messenger
}](values url.Values) (*T, error) {
	var f T
	decode(values, &f)
	if err := check(PT(&f)); err != nil {
		return nil, err
	}
	return &f, nil
}
