package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies engine faults.
type Kind int

const (
	// KindParse is malformed frame text.
	KindParse Kind = iota
	// KindProtocol is a frame that is well formed but not allowed.
	KindProtocol
	// KindAuthentication is a rejected login or a command sent before CONNECT.
	KindAuthentication
	// KindDelivery is a subscriber that could not be reached. It is never fatal.
	KindDelivery
	// KindUnknownTarget is a reference to a connection or subscription that is not tracked.
	KindUnknownTarget
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindProtocol:
		return "protocol"
	case KindAuthentication:
		return "authentication"
	case KindDelivery:
		return "delivery"
	case KindUnknownTarget:
		return "unknown_target"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a fault detected while processing a frame. Message is sent to the
// client in the ERROR frame; Detail and Cause are only logged.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	text := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Detail != "" {
		text += ": " + e.Detail
	}
	if e.Cause != nil {
		text += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return text
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message, detail string) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}

func wrapError(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf returns the kind of err, or KindProtocol when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProtocol
}
