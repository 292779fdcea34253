package chat

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound     = errors.New("chat room not found")
	ErrTransportClosed  = errors.New("transport closed")
	ErrMalformedMessage = errors.New("malformed message")
	ErrNotAccepted      = errors.New("connection not accepted")
	ErrClassifier       = errors.New("classifier failed")
)

// TransportError reports a failure of the underlying duplex channel while
// performing Op. It matches ErrTransportClosed when the peer is gone.
type TransportError struct {
	Op     string
	Err    error
	Closed bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return e.Closed && target == ErrTransportClosed
}

// NewTransportError wraps err for the given operation.
func NewTransportError(op string, err error, closed bool) *TransportError {
	return &TransportError{Op: op, Err: err, Closed: closed}
}
