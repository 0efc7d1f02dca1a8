package server

import "errors"

// WireError is an error that carries the short code an ERROR packet
// requires, alongside a human message for logs.
type WireError struct {
	Code    string
	Message string
}

func (e *WireError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func wireErr(code, message string) *WireError {
	return &WireError{Code: code, Message: message}
}

// Protocol errors.
var (
	ErrBadMagic        = wireErr("bad_magic", "request magic expected")
	ErrInvalidPacket   = wireErr("invalid_packet", "malformed packet")
	ErrUnexpectedCmd   = wireErr("unexpected_command", "command not valid in this context")
	ErrArgTooLarge     = wireErr("argument_too_large", "argument exceeds configured maximum")
	ErrInvalidFuncName = wireErr("invalid_function_name", "function name is empty or too large")
)

// Resource errors.
var ErrQueueFull = wireErr("queue_full", "function queue is at capacity")

// State errors.
var (
	ErrJobNotFound      = wireErr("job_not_found", "no such job, or not owned by this worker")
	ErrUnknownOption    = wireErr("unknown_option", "unrecognised OPTION_REQ name")
	ErrEpochUnsupported = wireErr("epoch_unsupported", "queue adapter does not support epoch scheduling")
)

// Adapter errors.
var ErrQueueAdapter = wireErr("queue_error", "durable queue adapter error")

// wireCode extracts the short code to send on an ERROR packet for any
// error, falling back to a generic code for errors that didn't originate
// from this package's taxonomy.
func wireCode(err error) string {
	var we *WireError
	if errors.As(err, &we) {
		return we.Code
	}
	return "unknown_error"
}
