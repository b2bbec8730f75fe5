package simplevr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrIncompletePacket  = errors.New("incomplete packet")
	ErrBadHeader         = errors.New("bad frame header")
	ErrMalformedLength   = errors.New("malformed frame length")
	ErrBadTrailer        = errors.New("bad frame trailer")
	ErrCommandMismatch   = errors.New("response command mismatch")
	ErrUnexpectedCommand = errors.New("unexpected command")
	ErrShortPayload      = errors.New("response payload too short")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDriverClosed      = errors.New("driver is closed")
)

// CommandError represents a failed command/response exchange.
type CommandError struct {
	Op      string  // Operation that failed (e.g., "version", "set group")
	Command Command // Command that was sent or expected
	Got     Command // Command found in the response, if one was decoded
	Err     error   // Underlying error
}

func (e *CommandError) Error() string {
	if errors.Is(e.Err, ErrCommandMismatch) || errors.Is(e.Err, ErrUnexpectedCommand) {
		return fmt.Sprintf("%s failed: %v: want %s, got %s", e.Op, e.Err, e.Command, e.Got)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error was caused by the module not sending a
// complete frame within the receive window.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrIncompletePacket)
}

// GetCommandError extracts a CommandError from an error chain, if present.
func GetCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
