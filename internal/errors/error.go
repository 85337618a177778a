package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryProtocol  Category = "protocol"
	CategoryHook      Category = "hook"
	CategoryCall      Category = "call"
	CategoryConfig    Category = "config"
	CategoryCLI       Category = "cli"
)

// FalkError is a structured error with a code, explanation and suggestion.
type FalkError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (transport, protocol, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Sentinels for errors.Is. Category sentinels carry no code.
var (
	ErrTransport = &FalkError{Category: CategoryTransport, Message: "transport failure"}
	ErrProtocol  = &FalkError{Category: CategoryProtocol, Message: "protocol violation"}
	ErrHook      = &FalkError{Category: CategoryHook, Message: "hook failure"}
	ErrConfig    = &FalkError{Category: CategoryConfig, Message: "invalid configuration"}

	ErrDuration       = &FalkError{Code: "E030", Category: CategoryCall, Message: "Malformed duration"}
	ErrTargetNotFound = &FalkError{Code: "E031", Category: CategoryCall, Message: "Target node not found"}
)

// Error implements the error interface.
func (e *FalkError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FalkError) Unwrap() error {
	return e.Wrapped
}

// Is matches code sentinels by code and category sentinels by category.
func (e *FalkError) Is(target error) bool {
	t, ok := target.(*FalkError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return t.Category != "" && e.Category == t.Category
}

// WithSuggestion adds a fix suggestion to the error.
func (e *FalkError) WithSuggestion(s string) *FalkError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *FalkError) WithDetail(d string) *FalkError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted explanation to the error.
func (e *FalkError) WithDetailf(format string, args ...any) *FalkError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *FalkError) Wrap(err error) *FalkError {
	e.Wrapped = err
	return e
}

// New creates a FalkError from a registered error code.
func New(code string) *FalkError {
	template, ok := registry[code]
	if !ok {
		return &FalkError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &FalkError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
	}
}

// Newf creates a new FalkError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *FalkError {
	return &FalkError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a FalkError.
func FromError(err error, code string) *FalkError {
	if err == nil {
		return nil
	}
	var fe *FalkError
	if stderrors.As(err, &fe) {
		return fe
	}
	return New(code).Wrap(err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
