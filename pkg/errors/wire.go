package errors

import (
	"fmt"
	"time"
)

// ConnectionFailed creates an error for a failed dial.
func ConnectionFailed(addr string, cause error) ProtocolError {
	message := fmt.Sprintf("failed to connect to %s", addr)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return Wrap(cause, CodeConnectionFailed, message, CategoryConnection, SeverityError).
		WithContext(&Context{Operation: "connect", RemoteAddr: addr})
}

// ConnectionClosed creates an error for a connection that closed before a
// complete frame was transferred.
func ConnectionClosed(addr string, cause error) ProtocolError {
	message := "connection closed"
	if addr != "" {
		message = fmt.Sprintf("connection to %s closed", addr)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return Wrap(cause, CodeConnectionClosed, message, CategoryConnection, SeverityError).
		WithContext(&Context{RemoteAddr: addr})
}

// FrameTooLarge creates an error for a declared frame length over the
// configured maximum. The connection carrying the frame must be closed.
func FrameTooLarge(declared uint64, max uint64) ProtocolError {
	return Newf(CodeFrameTooLarge, CategoryProtocol, SeverityError,
		"declared frame length %d exceeds maximum %d", declared, max)
}

// TruncatedFrame creates an error for a stream that ended inside a frame.
func TruncatedFrame(wanted, got int, cause error) ProtocolError {
	return Wrap(cause, CodeTruncatedFrame,
		fmt.Sprintf("frame truncated: wanted %d bytes, got %d", wanted, got),
		CategoryProtocol, SeverityError)
}

// InvalidJSON creates an error for a frame payload that failed to parse. The
// byte offset and a snippet around it are carried for diagnostics.
func InvalidJSON(offset int64, snippet string, cause error) ProtocolError {
	message := fmt.Sprintf("invalid JSON at byte offset %d", offset)
	if snippet != "" {
		message = fmt.Sprintf("%s near %q", message, snippet)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return Wrap(cause, CodeInvalidJSON, message, CategoryProtocol, SeverityError)
}

// UnsupportedType creates an error for a value with no defined wire mapping,
// naming the offending Go type and its path within the value.
func UnsupportedType(typeName, path string) ProtocolError {
	return Newf(CodeSerializationError, CategorySerialization, SeverityError,
		"cannot encode value of type %s at %s", typeName, path)
}

// CyclicValue creates an error for a self-referential value, which has no
// JSON representation.
func CyclicValue(path string) ProtocolError {
	return Newf(CodeSerializationError, CategorySerialization, SeverityError,
		"cannot encode cyclic value at %s", path)
}

// ConnectTimeout creates an error for a dial that missed its deadline.
func ConnectTimeout(addr string, timeout time.Duration) ProtocolError {
	return Newf(CodeConnectTimeout, CategoryTimeout, SeverityError,
		"connect to %s timed out after %v", addr, timeout).
		WithContext(&Context{Operation: "connect", RemoteAddr: addr})
}

// ReadTimeout creates an error for a read that missed its deadline. The
// framer that produced it no longer has a usable stream position.
func ReadTimeout(addr string, timeout time.Duration) ProtocolError {
	return Newf(CodeReadTimeout, CategoryTimeout, SeverityWarning,
		"read from %s timed out after %v", addr, timeout).
		WithContext(&Context{Operation: "read_message", RemoteAddr: addr})
}

// WriteTimeout creates an error for a write that missed its deadline.
func WriteTimeout(addr string, timeout time.Duration) ProtocolError {
	return Newf(CodeWriteTimeout, CategoryTimeout, SeverityWarning,
		"write to %s timed out after %v", addr, timeout).
		WithContext(&Context{Operation: "write_message", RemoteAddr: addr})
}

// InvalidState creates an error for an operation invoked in the wrong client
// or framer state.
func InvalidState(operation, state string) ProtocolError {
	return Newf(CodeInvalidState, CategoryState, SeverityError,
		"%s is not valid in state %s", operation, state).
		WithContext(&Context{Operation: operation})
}

// ValidationFailed creates an error for an envelope or builder input that
// violates an invariant.
func ValidationFailed(detail string) ProtocolError {
	return New(CodeValidationError, "validation failed", CategoryValidation, SeverityError).
		WithDetail(detail)
}

// VersionMismatch creates an error for an envelope whose major version does
// not match the supported protocol version.
func VersionMismatch(got, want string) ProtocolError {
	return Newf(CodeVersionMismatch, CategoryValidation, SeverityError,
		"envelope version %s is incompatible with protocol version %s", got, want)
}

// HandlerPanic creates an error for a handler that panicked while processing
// an exchange.
func HandlerPanic(recovered interface{}) ProtocolError {
	return Newf(CodeInternalError, CategoryInternal, SeverityCritical,
		"handler panic: %v", recovered)
}
