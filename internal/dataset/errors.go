package dataset

import (
	"errors"
	"fmt"
)

// ErrLoad matches every dataset load failure via errors.Is.
var ErrLoad = errors.New("dataset load failed")

// LoadError wraps the failure of one table load. The cause is a *FetchError,
// an *analysis.DecodeError, an *analysis.MissingColumnError or a context error.
type LoadError struct {
	Table    string
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s table from %s: %v", e.Table, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports ErrLoad as matching.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// FetchError reports a transport failure or a non-2xx response.
type FetchError struct {
	Location   string
	StatusCode int
	// Body holds a short excerpt of an error response.
	Body      string
	RequestID string
	Err       error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
	}
	msg := fmt.Sprintf("fetch %s: unexpected status %d", e.Location, e.StatusCode)
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the remote answered 404.
func (e *FetchError) NotFound() bool { return e.StatusCode == 404 }
