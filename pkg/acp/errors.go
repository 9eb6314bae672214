package acp

import "fmt"

// ErrorKind is the closed set of error kinds the core can terminate a
// request with. It is a value, not a Go error type hierarchy: every Kind
// projects deterministically onto a JSON-RPC code and a stable
// data.error discriminator string, grounded on the original
// SessionSetupError enum this runtime's error taxonomy was distilled from.
type ErrorKind string

const (
	// Invalid request parameters -> -32602.
	ErrWorkingDirectoryNotAbsolute ErrorKind = "working_directory_not_absolute"
	ErrInvalidPath                 ErrorKind = "invalid_path"
	ErrTransportNotSupported       ErrorKind = "transport_not_supported"
	ErrLoadSessionNotSupported     ErrorKind = "load_session_not_supported"
	ErrMalformedRequest            ErrorKind = "malformed_request"
	ErrInvalidSessionID            ErrorKind = "invalid_session_id"
	ErrMissingRequiredParameter    ErrorKind = "missing_required_parameter"
	ErrInvalidParameterType        ErrorKind = "invalid_parameter_type"
	ErrSessionNotFoundParam        ErrorKind = "session_not_found"
	ErrUnknownCapability           ErrorKind = "unknown_capability"
	ErrCapabilityNotSupported      ErrorKind = "capability_not_supported"

	// Internal -> -32603.
	ErrWorkingDirectoryNotFound     ErrorKind = "directory_not_found"
	ErrPermissionDenied             ErrorKind = "permission_denied"
	ErrNetworkPathNotSupported      ErrorKind = "network_path_not_supported"
	ErrMcpExecutableNotFound        ErrorKind = "executable_not_found"
	ErrMcpAuthenticationFailed      ErrorKind = "authentication_failed"
	ErrMcpConnectionTimeout         ErrorKind = "connection_timeout"
	ErrMcpProtocolNegotiationFailed ErrorKind = "protocol_negotiation_failed"
	ErrSessionExpired               ErrorKind = "session_expired"
	ErrSessionCorrupted             ErrorKind = "session_corrupted"
	ErrStorageFailure               ErrorKind = "storage_failure"
	ErrHistoryReplayFailed          ErrorKind = "history_replay_failed"
	ErrPartialSessionCleanupFailed  ErrorKind = "partial_cleanup_failed"
	ErrMcpServerCleanupFailed       ErrorKind = "mcp_cleanup_failed"
	ErrNetworkError                 ErrorKind = "network_error"
	ErrConverterError               ErrorKind = "converter_error"
)

// invalidParamsKinds is the closed set of Kinds that map to -32602. Every
// other Kind maps to -32603, matching the two-code split of §4.8/§7.
var invalidParamsKinds = map[ErrorKind]bool{
	ErrWorkingDirectoryNotAbsolute: true,
	ErrInvalidPath:                 true,
	ErrTransportNotSupported:       true,
	ErrLoadSessionNotSupported:     true,
	ErrMalformedRequest:            true,
	ErrInvalidSessionID:            true,
	ErrMissingRequiredParameter:    true,
	ErrInvalidParameterType:        true,
	ErrSessionNotFoundParam:        true,
	ErrUnknownCapability:           true,
	ErrCapabilityNotSupported:      true,
}

const (
	codeInvalidParams = -32602
	codeInternalError = -32603
)

// Error is the in-process error value carrying an ErrorKind plus whatever
// operation-specific fields the JSON-RPC data object needs. It satisfies
// the standard error interface so it composes with fmt.Errorf("%w", ...)
// like any other Go error.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// New builds an Error of the given kind with a human-readable message and
// optional extra data fields (e.g. session id, path, server name).
func New(kind ErrorKind, message string, fields map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

// Newf is New with a formatted message.
func Newf(kind ErrorKind, fields map[string]any, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), fields)
}

// ToRPCError projects an Error onto the wire JSON-RPC error object. This is
// the only place an error value becomes a wire error object (§9 design
// note: "the JSON-RPC boundary is the only place that converts an error
// value to a wire error object").
func (e *Error) ToRPCError() *RPCError {
	code := codeInternalError
	if invalidParamsKinds[e.Kind] {
		code = codeInvalidParams
	}
	data := map[string]any{"error": string(e.Kind)}
	for k, v := range e.Fields {
		data[k] = v
	}
	return &RPCError{
		Code:    code,
		Message: e.Error(),
		Data:    data,
	}
}

// AsError projects an arbitrary error onto an RPCError, falling back to a
// generic internal error when it is not a *Error produced by this package.
func AsError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e.ToRPCError()
	}
	return New(ErrStorageFailure, err.Error(), nil).ToRPCError()
}
