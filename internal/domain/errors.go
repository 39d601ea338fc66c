package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks transport failures: timeouts, connection errors, and
	// non-2xx responses. A source failing with it contributes nothing to a poll.
	ErrNetwork = errors.New("network error")

	// ErrParse marks a fetched document that is structurally invalid.
	ErrParse = errors.New("parse error")

	// ErrFieldMissing marks an item whose required field resolved to nothing.
	// Only that item is dropped.
	ErrFieldMissing = errors.New("required field missing")
)

// NetworkError describes a failed fetch. It matches ErrNetwork with errors.Is.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
