package parser

import (
	"fmt"
	"strings"
)

// ValidationError reports a schema mismatch discovered while parsing a
// raw value, carrying the field path breadcrumb so callers can surface
// exactly which part of a (possibly large) payload failed.
type ValidationError struct {
	Path     []string
	Expected string
	Got      interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: at %s expected %s, got %#v", strings.Join(e.Path, "."), e.Expected, e.Got)
}

func newValidationError(path []string, expected string, got interface{}) *ValidationError {
	return &ValidationError{Path: append([]string(nil), path...), Expected: expected, Got: got}
}
