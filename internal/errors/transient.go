package errors

import (
	"errors"
	"fmt"
)

// TransientError marks a failed call to an external dependency: timeouts,
// transport failures, unexpected status codes and undecodable payloads.
// Callers may fall back to older data; nothing retries automatically.
type TransientError struct {
	// Op names the failed operation, e.g. "googlebooks.fetch".
	Op string
	// StatusCode is the HTTP status when one was received, otherwise 0.
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a TransientError for operation op.
func NewTransientError(op string, statusCode int, err error) *TransientError {
	return &TransientError{Op: op, StatusCode: statusCode, Err: err}
}

// IsTransient reports whether err is a TransientError (even when wrapped).
func IsTransient(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}
