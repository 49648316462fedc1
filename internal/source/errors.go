package source

import "fmt"

// InvalidSourceError reports a reference that was rejected before any I/O.
type InvalidSourceError struct {
	Ref    string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source '%s': %s", e.Ref, e.Reason)
}

// FetchError reports a transport failure while listing or downloading.
// Link is the URL that failed.
type FetchError struct {
	Link string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Link, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
