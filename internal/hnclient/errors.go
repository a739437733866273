package hnclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the id was valid once but the record is gone at
	// the source. Callers map this to a tombstone, not a failure.
	ErrNotFound = errors.New("record not found at source")

	// ErrFeedUnavailable means the recent-changes poll itself failed.
	// The whole batch becomes a no-op until the next tick.
	ErrFeedUnavailable = errors.New("changes feed unavailable")
)

// TransientError marks a fetch failure worth retrying: timeouts,
// connection resets, 5xx, throttling.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient fetch failure: %s", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a fetch failure that retrying cannot fix: a
// malformed payload or a request the source rejects outright.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent fetch failure: %s", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a non-retryable fetch failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
