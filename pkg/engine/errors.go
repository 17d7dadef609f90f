package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for handling at the plan boundary.
type ErrorClass string

const (
	// ErrorClassConfig indicates an invalid or unusable configuration.
	// Raised at construction time, never retried.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassValidation indicates input that failed validation.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassPlugin indicates a programmer error against the plugin
	// surface, such as requesting an unknown step or handler kind.
	ErrorClassPlugin ErrorClass = "plugin"

	// ErrorClassIO indicates a filesystem or storage failure. Propagated
	// unchanged; run-level recovery belongs to the engine.
	ErrorClassIO ErrorClass = "io"

	// ErrorClassAborted indicates the plan was aborted.
	ErrorClassAborted ErrorClass = "aborted"
)

// Error is a classified error with component context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Component is the plan component the error belongs to, if any.
	Component string `json:"component,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Component != "" {
		msg = fmt.Sprintf("[%s] %s (component=%s)", e.Class, e.Message, e.Component)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithComponent adds component context to an error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewPluginError creates a new plugin error.
func NewPluginError(message string) *Error {
	return &Error{Class: ErrorClassPlugin, Message: message}
}

// NewIOError creates a new I/O error.
func NewIOError(message string, err error) *Error {
	return &Error{Class: ErrorClassIO, Message: message, Err: err}
}

// ErrAborted is the sentinel for plan aborts.
var ErrAborted = &Error{Class: ErrorClassAborted, Message: "plan aborted"}

// IsConfig returns true if the error is classified as a configuration error.
func IsConfig(err error) bool {
	return hasClass(err, ErrorClassConfig)
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsPlugin returns true if the error is classified as a plugin error.
func IsPlugin(err error) bool {
	return hasClass(err, ErrorClassPlugin)
}

// IsAborted returns true if the error indicates a plan abort.
func IsAborted(err error) bool {
	return hasClass(err, ErrorClassAborted)
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
