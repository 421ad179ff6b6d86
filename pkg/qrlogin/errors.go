package qrlogin

import "fmt"

// ErrorKind classifies a fatal login failure.
type ErrorKind string

const (
	// ErrKindNetwork is a transport-level failure (connection, timeout).
	ErrKindNetwork ErrorKind = "network"

	// ErrKindProtocol is a non-zero service error code that is not one of
	// the handled pending/declined codes, or an unexpected HTTP status.
	ErrKindProtocol ErrorKind = "protocol"

	// ErrKindStructural is a response that decodes but does not match any
	// expected shape.
	ErrKindStructural ErrorKind = "structural"

	// ErrKindFlow is a flow-level violation such as exceeding the
	// session-check redirect bound.
	ErrKindFlow ErrorKind = "flow"
)

// LoginError is the error carried by a login_error event.
type LoginError struct {
	Kind    ErrorKind
	Code    int // remote error code or HTTP status, when one applies
	Message string
	Err     error // wrapped underlying error
}

// Error implements the error interface.
func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("[%s] %s (code %d)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped underlying error.
func (e *LoginError) Unwrap() error {
	return e.Err
}

func newNetworkError(message string, err error) *LoginError {
	return &LoginError{Kind: ErrKindNetwork, Message: message, Err: err}
}

func newProtocolError(code int, message string) *LoginError {
	return &LoginError{Kind: ErrKindProtocol, Code: code, Message: message}
}

func newStructuralError(message string) *LoginError {
	return &LoginError{Kind: ErrKindStructural, Message: message}
}

func newFlowError(message string) *LoginError {
	return &LoginError{Kind: ErrKindFlow, Message: message}
}
