// Package apperr holds the error taxonomy shared across offnote packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDrainInProgress = errors.New("drain already in progress")
	ErrOffline         = errors.New("offline")
)

// RemoteError reports a failed Remote Client call. StatusCode is zero for
// transport failures and deadline expiry.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// DrainError reports the queued operation that halted a drain.
type DrainError struct {
	Seq    int64
	Kind   string
	NoteID string
	Err    error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("drain halted at seq %d (%s %s): %v", e.Seq, e.Kind, e.NoteID, e.Err)
}

func (e *DrainError) Unwrap() error { return e.Err }

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
