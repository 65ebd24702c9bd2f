package stomp

import (
	"errors"
	"fmt"
)

var (
	// ErrFrame is matched by every parse failure.
	ErrFrame = errors.New("stomp: invalid frame")

	ErrEmptyFrame      = errors.New("empty frame")
	ErrMissingCommand  = errors.New("missing command")
	ErrMalformedHeader = errors.New("malformed header")
	ErrExtraSection    = errors.New("more than one header/body separator")
	ErrFrameTooLarge   = errors.New("frame exceeds maximum size")
)

// ParseError describes why a frame text could not be parsed.
type ParseError struct {
	Reason error
	Line   string
}

func (e *ParseError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("%v: %v: %q", ErrFrame, e.Reason, e.Line)
	}
	return fmt.Sprintf("%v: %v", ErrFrame, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrFrame, e.Reason}
}
