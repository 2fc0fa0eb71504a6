// Package errors provides structured error handling for domsync.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindMalformedAttribute indicates a structured attribute payload that
	// could not be parsed.
	KindMalformedAttribute
	// KindDerive indicates a field derivation failure.
	KindDerive
	// KindSelector indicates an invalid selector.
	KindSelector
	// KindSchema indicates an invalid record type or schema file.
	KindSchema
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedAttribute:
		return "malformed-attribute"
	case KindDerive:
		return "derive"
	case KindSelector:
		return "selector"
	case KindSchema:
		return "schema"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// SyncError represents a structured error raised while keeping a model in
// sync with its host tree.
type SyncError struct {
	// Op is the operation that failed (e.g., "model.DeriveAll").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Type is the record type name, if applicable.
	Type string
	// Field is the field key, if applicable.
	Field string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *SyncError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s] field=%s.%s: %v", e.Op, e.Kind, e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// MalformedAttributeError reports a structured attribute whose raw text
// could not be decoded. The declared default is never substituted.
type MalformedAttributeError struct {
	// Attribute is the attribute name.
	Attribute string
	// Raw is the attribute text that failed to parse.
	Raw string
	// Err is the decoder error.
	Err error
}

func (e *MalformedAttributeError) Error() string {
	return fmt.Sprintf("malformed structured attribute %q (%q): %v", e.Attribute, e.Raw, e.Err)
}

func (e *MalformedAttributeError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "dom.Flush").
	Op string
	// Type and Field name the record field being derived, if any.
	Type  string
	Field string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("panic in %s field=%s.%s: %v", e.Op, e.Type, e.Field, e.Value)
	}
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors that have no synchronous caller, such as
// failures inside mutation callbacks.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *SyncError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
