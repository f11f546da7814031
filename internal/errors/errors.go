// internal/errors/errors.go
package errors

import (
	"fmt"
)

// ErrorType represents the type of runtime error
type ErrorType string

const (
	ConversionError ErrorType = "ConversionError"
	LookupError     ErrorType = "LookupError"
	TypeError       ErrorType = "TypeError"
	BindError       ErrorType = "BindError"
	FiberError      ErrorType = "FiberError"
	AbortedError    ErrorType = "AbortedError"
)

// RuntimeError is the single error value the runtime core reports. Nothing in
// the core terminates the process; every failure surfaces as one of these and a
// caller decides whether to recover.
type RuntimeError struct {
	Type    ErrorType
	Message string
}

// Error implements the error interface
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// New creates a runtime error of the given type
func New(t ErrorType, message string) *RuntimeError {
	return &RuntimeError{Type: t, Message: message}
}

// Newf creates a runtime error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// IsType reports whether err is a RuntimeError of type t
func IsType(err error, t ErrorType) bool {
	re, ok := err.(*RuntimeError)
	return ok && re.Type == t
}
