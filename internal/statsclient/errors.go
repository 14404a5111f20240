package statsclient

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is on the typed errors below.
var (
	// ErrTransport covers network failures, timeouts and non-2xx statuses.
	ErrTransport = errors.New("statistics transport error")

	// ErrMalformedResponse is returned when a 2xx body does not match the
	// expected payload shape.
	ErrMalformedResponse = errors.New("malformed statistics response")
)

// TransportError reports a failed round trip to the statistics backend.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// MalformedResponseError reports a body that could not be parsed into the
// expected shape.
type MalformedResponseError struct {
	URL string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedResponse) match any MalformedResponseError.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }
