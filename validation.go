package insurance

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers given without a country code
const DefaultPhoneRegion = "US"

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// Positive fails with message unless the number is strictly greater than zero
func Positive(message string) validation.RuleFunc {
	return func(value interface{}) error {
		f, ok := floatValue(value)
		if ok && f <= 0 {
			return errors.New(message)
		}
		return nil
	}
}

// NonNegative fails with message when the number is below zero
func NonNegative(message string) validation.RuleFunc {
	return func(value interface{}) error {
		f, ok := floatValue(value)
		if ok && f < 0 {
			return errors.New(message)
		}
		return nil
	}
}

// CalendarDate fails with message unless the string is a YYYY-MM-DD date.
// Empty strings are left to Required.
func CalendarDate(message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := stringValue(value)
		if s == "" {
			return nil
		}
		if _, err := ParseDate(s); err != nil {
			return errors.New(message)
		}
		return nil
	}
}

// PhoneNumber accepts numbers phonenumbers considers valid
func PhoneNumber(value interface{}) error {
	s, _ := stringValue(value)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return errors.New("Invalid phone number")
	}
	return nil
}

func floatValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	default:
		return 0, false
	}
}

func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

// validationFailure converts ozzo errors into a single validation error.
// The message is taken from the first failing field in order; every field
// message is kept in the metadata.
func validationFailure(err error, order ...string) error {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return NewValidationError(err.Error())
	}

	details := make(map[string]any, len(fields))
	for name, fieldErr := range fields {
		if fieldErr != nil {
			details[name] = fieldErr.Error()
		}
	}

	message := ""
	for _, name := range order {
		if fieldErr := fields[name]; fieldErr != nil {
			message = fieldErr.Error()
			break
		}
	}
	if message == "" {
		names := make([]string, 0, len(details))
		for name := range details {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			message = details[names[0]].(string)
		}
	}

	return NewValidationError(message).WithMetadata(map[string]any{"fields": details})
}
