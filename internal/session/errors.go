package session

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/multiplay/internal/signaling"
)

var (
	ErrInvalidRoomCode   = signaling.ErrInvalidRoomCode
	ErrJoinFailed        = errors.New("join failed")
	ErrTransportClosed   = errors.New("signaling transport closed")
	ErrPeerDisconnected  = errors.New("peer disconnected")
	ErrTimeout           = errors.New("timeout")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrNegotiation       = errors.New("negotiation failed")
	ErrWrongRole         = errors.New("operation not available for this role")
	ErrClosed            = errors.New("session closed")
)

// Error describes a failed session operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
