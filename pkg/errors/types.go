// Package errors provides structured error handling for the context exchange
// protocol. It defines error types carrying a numeric code, a category that
// maps to the protocol's error taxonomy, and rich context for logging and
// programmatic handling.
package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category classifies an error for handling decisions. The categories mirror
// the protocol taxonomy: connection errors are retryable with a fresh
// connection, protocol errors poison only their own connection, serialization
// errors surface synchronously to the caller, timeouts are recoverable, and
// state errors indicate API misuse.
type Category string

const (
	CategoryConnection    Category = "connection"
	CategoryProtocol      Category = "protocol"
	CategorySerialization Category = "serialization"
	CategoryTimeout       Category = "timeout"
	CategoryState         Category = "state"
	CategoryValidation    Category = "validation"
	CategoryInternal      Category = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where and when an error occurred.
type Context struct {
	Component  string    `json:"component,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	ConnID     string    `json:"conn_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProtocolError is the interface implemented by all errors produced by this
// module.
type ProtocolError interface {
	error

	// Code returns the numeric error code.
	Code() int

	// Message returns a human-readable error message.
	Message() string

	// Category returns the error category for classification.
	Category() Category

	// Severity returns the error severity level.
	Severity() Severity

	// Context returns the error context information.
	Context() *Context

	// WithContext returns a new error with the provided context.
	WithContext(ctx *Context) ProtocolError

	// WithDetail returns a new error with additional detail appended.
	WithDetail(detail string) ProtocolError

	// Unwrap returns the underlying error for error chain traversal.
	Unwrap() error

	// ToJSON returns the error as a JSON-serializable map.
	ToJSON() map[string]interface{}
}

type baseError struct {
	code     int
	message  string
	details  string
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int {
	return e.code
}

func (e *baseError) Message() string {
	return e.message
}

func (e *baseError) Category() Category {
	return e.category
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) Context() *Context {
	return e.context
}

func (e *baseError) WithContext(ctx *Context) ProtocolError {
	newErr := *e
	if ctx != nil && ctx.Timestamp.IsZero() {
		c := *ctx
		c.Timestamp = time.Now()
		ctx = &c
	}
	newErr.context = ctx
	return &newErr
}

func (e *baseError) WithDetail(detail string) ProtocolError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}

	if e.details != "" {
		result["details"] = e.details
	}

	if e.context != nil {
		result["context"] = e.context
	}

	if e.cause != nil {
		result["cause"] = e.cause.Error()
	}

	return result
}

// MarshalJSON implements json.Marshaler for baseError.
func (e *baseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// New creates a new ProtocolError with the specified parameters.
func New(code int, message string, category Category, severity Severity) ProtocolError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// Newf creates a new ProtocolError with a formatted message.
func Newf(code int, category Category, severity Severity, format string, args ...interface{}) ProtocolError {
	return &baseError{
		code:     code,
		message:  fmt.Sprintf(format, args...),
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// Wrap wraps an existing error as a ProtocolError.
func Wrap(err error, code int, message string, category Category, severity Severity) ProtocolError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// AsProtocolError extracts a ProtocolError from the error chain.
func AsProtocolError(err error) (ProtocolError, bool) {
	for err != nil {
		if perr, ok := err.(ProtocolError); ok {
			return perr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// IsCategory reports whether an error belongs to a specific category.
func IsCategory(err error, category Category) bool {
	if perr, ok := AsProtocolError(err); ok {
		return perr.Category() == category
	}
	return false
}

// IsCode reports whether an error carries a specific error code.
func IsCode(err error, code int) bool {
	if perr, ok := AsProtocolError(err); ok {
		return perr.Code() == code
	}
	return false
}

// IsConnectionError reports whether err is a connection failure: refused,
// reset, or unexpectedly closed. Recoverable by retrying a fresh connection.
func IsConnectionError(err error) bool {
	return IsCategory(err, CategoryConnection)
}

// IsProtocolError reports whether err is a wire protocol violation: malformed
// length prefix, truncated frame, invalid JSON, or over-size message.
func IsProtocolError(err error) bool {
	return IsCategory(err, CategoryProtocol)
}

// IsSerializationError reports whether err is an encoding failure for a value
// with no defined wire mapping.
func IsSerializationError(err error) bool {
	return IsCategory(err, CategorySerialization)
}

// IsTimeout reports whether err is a deadline expiry. Recoverable; the caller
// decides whether to retry.
func IsTimeout(err error) bool {
	return IsCategory(err, CategoryTimeout)
}

// IsInvalidState reports whether err is API misuse, such as sending before
// connecting.
func IsInvalidState(err error) bool {
	return IsCategory(err, CategoryState)
}

// IsValidationError reports whether err is an envelope or builder input
// validation failure.
func IsValidationError(err error) bool {
	return IsCategory(err, CategoryValidation)
}
