package bridge

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when sending on or serving a closed transport.
var ErrClosed = errors.New("bridge transport closed")

// ProtocolDecodeError reports a payload that crossed the boundary but could
// not be decoded.
type ProtocolDecodeError struct {
	// What was being decoded, e.g. "envelope" or "args".
	Subject string
	// Payload is the raw input, truncated for logging.
	Payload string
	Err     error
}

const maxPayloadEcho = 256

func newDecodeError(subject, payload string, err error) *ProtocolDecodeError {
	if len(payload) > maxPayloadEcho {
		payload = payload[:maxPayloadEcho] + "..."
	}
	return &ProtocolDecodeError{Subject: subject, Payload: payload, Err: err}
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("protocol decode error: %s: %v", e.Subject, e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error {
	return e.Err
}

// IsProtocolDecodeError reports whether err is or wraps a ProtocolDecodeError.
func IsProtocolDecodeError(err error) bool {
	var pde *ProtocolDecodeError
	return errors.As(err, &pde)
}
