package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is the root of every configuration error. Components wrap it
// so callers can tell a misconfiguration apart from a legitimately empty
// result.
var ErrInvalid = errors.New("invalid configuration")

// Error describes a configuration problem precisely enough for a user to
// fix it: which key, what it held, and what was expected.
type Error struct {
	Section  string
	Key      string
	Value    string
	Expected string
}

// Invalid returns an *Error for key in section.
func Invalid(section, key, value, expected string) *Error {
	return &Error{Section: section, Key: key, Value: value, Expected: expected}
}

// Error returns a human-readable description of the problem.
func (e *Error) Error() string {
	name := e.Key
	if e.Section != "" {
		name = "[" + e.Section + "] " + e.Key
	}
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", name, e.Expected)
	}
	return fmt.Sprintf("%s = %q: %s", name, e.Value, e.Expected)
}

// Unwrap returns ErrInvalid for use with errors.Is.
func (e *Error) Unwrap() error {
	return ErrInvalid
}
