package export

import (
	"errors"
	"fmt"
)

// ErrNotImplemented marks a recognized format with no backend wired. It is
// carried by a failed Result, never returned as an error.
var ErrNotImplemented = errors.New("export backend not implemented")

// ErrNoRecord is returned when the session has no loaded record.
var ErrNoRecord = errors.New("no record has been loaded; call AddRecord first")

// UnsupportedFormatError reports a format key absent from the registry.
type UnsupportedFormatError struct {
	Key string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("format '%s' is not supported", e.Key)
}

// RowLimitExceededError reports data larger than a format can hold.
type RowLimitExceededError struct {
	Key   string
	Rows  int
	Limit int
}

func (e *RowLimitExceededError) Error() string {
	return fmt.Sprintf("record has %d rows, format '%s' holds at most %d", e.Rows, e.Key, e.Limit)
}

// BackendWriteError wraps a failure inside a format backend.
type BackendWriteError struct {
	Key  string
	Path string
	Err  error
}

func (e *BackendWriteError) Error() string {
	return fmt.Sprintf("%s export to %s failed: %v", e.Key, e.Path, e.Err)
}

func (e *BackendWriteError) Unwrap() error { return e.Err }
