package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType categorizes domain errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProcess    ErrorType = "process"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError is a typed error carrying an optional cause and key/value context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConflict, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProcess, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTimeout, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeCancelled, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// WithContext attaches a key/value pair and returns the same error for chaining
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Context[k])
		}
		sb.WriteString("]")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError of the same type, so errors.Is works with sentinel-like values
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// walk visits err and everything it wraps, including joined errors, until visit returns true
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return false
	}
	if visit(err) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if walk(e, visit) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	}
	return false
}

func hasType(err error, errorType ErrorType) bool {
	return walk(err, func(e error) bool {
		domainErr, ok := e.(*DomainError)
		return ok && domainErr.Type == errorType
	})
}

func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool   { return hasType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool   { return hasType(err, ErrorTypeConflict) }
func IsIOError(err error) bool         { return hasType(err, ErrorTypeIO) }
func IsProcessError(err error) bool    { return hasType(err, ErrorTypeProcess) }
func IsTimeoutError(err error) bool    { return hasType(err, ErrorTypeTimeout) }
func IsCancelledError(err error) bool  { return hasType(err, ErrorTypeCancelled) }
func IsInternalError(err error) bool   { return hasType(err, ErrorTypeInternal) }

// ContextValue looks up a context key on the outermost DomainError that has it
func ContextValue(err error, key string) (interface{}, bool) {
	var value interface{}
	found := walk(err, func(e error) bool {
		domainErr, ok := e.(*DomainError)
		if !ok {
			return false
		}
		value, ok = domainErr.Context[key]
		return ok
	})
	return value, found
}

// ErrorCollection accumulates independent errors
type ErrorCollection struct {
	errs []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

func (c *ErrorCollection) Add(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

func (c *ErrorCollection) HasErrors() bool {
	return len(c.errs) > 0
}

func (c *ErrorCollection) Errors() []error {
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

func (c *ErrorCollection) Error() string {
	switch len(c.errs) {
	case 0:
		return ""
	case 1:
		return c.errs[0].Error()
	}
	parts := make([]string, len(c.errs))
	for i, err := range c.errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(c.errs), strings.Join(parts, "; "))
}

// ToError returns nil when the collection is empty and a joined error otherwise
func (c *ErrorCollection) ToError() error {
	if len(c.errs) == 0 {
		return nil
	}
	return errors.Join(c.errs...)
}
