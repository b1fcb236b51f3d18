package exitcode

import (
	"errors"

	"github.com/animeqa/animeqa/internal/backend"
)

// Exit codes for animeqa commands
const (
	Success    = 0
	Error      = 1
	Validation = 2
	Timeout    = 124 // matches timeout(1)
	Cancelled  = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e ExitError) Error() string {
	return e.Message
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// Convenience constructors
func Cancel() ExitError { return ExitError{Code: Cancelled, Message: "cancelled", Err: backend.ErrCancelled} }

// FromError wraps a request error with the code for its kind and the
// user-facing message. nil stays nil.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return ExitError{Code: CodeFor(err), Message: backend.UserMessage(err), Err: err}
}

// CodeFor returns the exit code for err.
func CodeFor(err error) int {
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch backend.KindOf(err) {
	case backend.KindNone:
		return Success
	case backend.KindValidation:
		return Validation
	case backend.KindTimeout:
		return Timeout
	case backend.KindCancelled:
		return Cancelled
	default:
		return Error
	}
}
