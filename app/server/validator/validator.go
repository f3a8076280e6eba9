// Package validator provides functionality for validating and sanitizing data.
package validator

import (
	"net/url"
	"strconv"
	"strings"
)

// Validator is a struct that contains field errors and non-field errors.
type Validator struct {
	FieldErrors    map[string]string
	NonFieldErrors []string
}

// Valid returns true if the FieldErrors map is empty, otherwise false.
func (v *Validator) Valid() bool {
	return len(v.FieldErrors) == 0
}

// AddFieldError adds an error message to the FieldErrors map.
func (v *Validator) AddFieldError(key, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}

	if _, exists := v.FieldErrors[key]; !exists {
		v.FieldErrors[key] = message
	}
}

// AddNonFieldError adds an error message to the NonFieldErrors slice.
func (v *Validator) AddNonFieldError(message string) {
	v.NonFieldErrors = append(v.NonFieldErrors, message)
}

// CheckField adds an error message to the FieldErrors map only if a validation check is not passed.
func (v *Validator) CheckField(ok bool, key, message string) {
	if !ok {
		v.AddFieldError(key, message)
	}
}

// FirstError returns one of the recorded error messages, empty when valid.
func (v *Validator) FirstError() string {
	for _, msg := range v.FieldErrors {
		return msg
	}
	if len(v.NonFieldErrors) > 0 {
		return v.NonFieldErrors[0]
	}
	return ""
}

// NotBlank returns true if a value is not an empty string.
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxChars returns true if a value contains no more than n characters.
func MaxChars(value string, n int) bool {
	return len(strings.TrimSpace(value)) <= n
}

// AbsoluteURL returns true if the value parses as an absolute http(s) URL.
func AbsoluteURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// ValidExpireSelector returns true if the value is -1 (never) or a positive
// integer day count.
func ValidExpireSelector(value string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return n == -1 || n > 0
}
