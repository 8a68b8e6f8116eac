package avs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionClosed is returned by every operation after the session was torn down.
	ErrSessionClosed = errors.New("avs session closed")
	// ErrTurnInFlight is returned when a Recognize/UserEvent turn is already running.
	ErrTurnInFlight = errors.New("avs turn already in flight")
	// ErrDebugInfoPending signals that the downchannel has not delivered debugging data yet.
	ErrDebugInfoPending = errors.New("avs debugging info not yet received")
)

// ErrorKind classifies AVS failures.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindProtocol
	KindAuth
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified AVS failure.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "avs " + e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind != KindAuth
}

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func networkError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func protocolError(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

func statusError(op string, status int, body []byte) error {
	kind := KindProtocol
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}
	var cause error
	if len(body) > 0 {
		if len(body) > 256 {
			body = body[:256]
		}
		cause = errors.New(string(body))
	}
	return &Error{Kind: kind, Op: op, StatusCode: status, Err: cause}
}
