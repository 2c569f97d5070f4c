package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Kind classifies why a receipt was rejected.
type Kind string

const (
	KindMissing    Kind = "missing"
	KindWrongType  Kind = "wrong_type"
	KindNotAllowed Kind = "not_allowed"
	KindArity      Kind = "arity"
)

// ValidationError is the single error kind returned for contract violations.
type ValidationError struct {
	Field   string
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsValidationError unwraps err to a *ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func Missing(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    KindMissing,
		Message: "is required",
	}
}

func Empty(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    KindMissing,
		Message: "must not be empty",
	}
}

func WrongType(field, want string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    KindWrongType,
		Message: "must be " + want,
	}
}

func NotAllowed(field, got string, allowed []string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    KindNotAllowed,
		Message: fmt.Sprintf("%q is not one of %s", got, strings.Join(allowed, ", ")),
	}
}

func Arity(field string, want, got int) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    KindArity,
		Message: fmt.Sprintf("must contain exactly %d entry, got %d", want, got),
	}
}

// Path joins a parent field path and a child name.
func Path(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// Index renders an element path such as line_items[3].
func Index(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

// SanitizeString strips control characters and surrounding whitespace. It is
// applied to request parameters, never to receipt field values.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateLimit parses a positive page size, applying def when raw is empty
// and clamping to max.
func ValidateLimit(raw string, def, max int) (int, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, WrongType("limit", "an integer")
	}
	if n <= 0 {
		return 0, &ValidationError{
			Field:   "limit",
			Kind:    KindNotAllowed,
			Message: "must be positive",
		}
	}
	if n > max {
		n = max
	}
	return n, nil
}
