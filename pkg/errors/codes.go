package errors

// Error codes for the context exchange protocol. The numbering follows the
// JSON-RPC reserved range convention the envelope format grew up next to,
// grouped by concern.
const (
	// Connection errors (-33000 to -33099)
	CodeConnectionFailed int = -33000 // Failed to establish connection
	CodeConnectionClosed int = -33001 // Connection closed before a full frame
	CodeConnectionReset  int = -33002 // Connection reset by peer

	// Protocol errors (-33100 to -33199)
	CodeProtocolError  int = -33100 // Generic wire protocol violation
	CodeFrameTooLarge  int = -33101 // Declared frame length over the maximum
	CodeTruncatedFrame int = -33102 // Stream ended inside a frame
	CodeInvalidJSON    int = -33103 // Frame payload is not valid JSON

	// Serialization errors (-33200 to -33299)
	CodeSerializationError int = -33200 // Value has no defined wire mapping

	// Timeout errors (-33300 to -33399)
	CodeConnectTimeout int = -33300 // Dial deadline expired
	CodeReadTimeout    int = -33301 // Read deadline expired
	CodeWriteTimeout   int = -33302 // Write deadline expired

	// State errors (-33400 to -33499)
	CodeInvalidState int = -33400 // Operation not valid in current state

	// Validation errors (-33500 to -33599)
	CodeValidationError int = -33500 // Envelope or builder input invalid
	CodeVersionMismatch int = -33501 // Envelope major version mismatch

	// Internal errors (-33900 to -33999)
	CodeInternalError int = -33900 // Handler panic or other internal failure
)

// CodeInfo provides human-readable information about an error code.
type CodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var codeRegistry = map[int]CodeInfo{
	CodeConnectionFailed: {CodeConnectionFailed, "ConnectionFailed", "Failed to establish connection", CategoryConnection, SeverityError},
	CodeConnectionClosed: {CodeConnectionClosed, "ConnectionClosed", "Connection closed unexpectedly", CategoryConnection, SeverityError},
	CodeConnectionReset:  {CodeConnectionReset, "ConnectionReset", "Connection reset by peer", CategoryConnection, SeverityError},

	CodeProtocolError:  {CodeProtocolError, "ProtocolError", "Wire protocol violation", CategoryProtocol, SeverityError},
	CodeFrameTooLarge:  {CodeFrameTooLarge, "FrameTooLarge", "Frame length over maximum", CategoryProtocol, SeverityError},
	CodeTruncatedFrame: {CodeTruncatedFrame, "TruncatedFrame", "Stream ended inside a frame", CategoryProtocol, SeverityError},
	CodeInvalidJSON:    {CodeInvalidJSON, "InvalidJSON", "Frame payload is not valid JSON", CategoryProtocol, SeverityError},

	CodeSerializationError: {CodeSerializationError, "SerializationError", "Value has no wire mapping", CategorySerialization, SeverityError},

	CodeConnectTimeout: {CodeConnectTimeout, "ConnectTimeout", "Dial deadline expired", CategoryTimeout, SeverityError},
	CodeReadTimeout:    {CodeReadTimeout, "ReadTimeout", "Read deadline expired", CategoryTimeout, SeverityWarning},
	CodeWriteTimeout:   {CodeWriteTimeout, "WriteTimeout", "Write deadline expired", CategoryTimeout, SeverityWarning},

	CodeInvalidState: {CodeInvalidState, "InvalidState", "Operation not valid in current state", CategoryState, SeverityError},

	CodeValidationError: {CodeValidationError, "ValidationError", "Envelope or input invalid", CategoryValidation, SeverityError},
	CodeVersionMismatch: {CodeVersionMismatch, "VersionMismatch", "Envelope major version mismatch", CategoryValidation, SeverityError},

	CodeInternalError: {CodeInternalError, "InternalError", "Internal failure", CategoryInternal, SeverityCritical},
}

// GetCodeInfo returns information about an error code.
func GetCodeInfo(code int) (CodeInfo, bool) {
	info, exists := codeRegistry[code]
	return info, exists
}

// CodeName returns the registered name of an error code.
func CodeName(code int) string {
	if info, exists := codeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// ListCodes returns all registered error codes.
func ListCodes() []CodeInfo {
	codes := make([]CodeInfo, 0, len(codeRegistry))
	for _, info := range codeRegistry {
		codes = append(codes, info)
	}
	return codes
}
