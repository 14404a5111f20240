package query

import (
	"fmt"
	"time"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
)

// Key identifies one cache entry: a resource name plus the period it was
// requested for.
type Key struct {
	Resource string
	Period   domain.Period
}

func (k Key) String() string { return k.Resource + ":" + string(k.Period) }

// Status is the lifecycle position of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	for _, v := range []Status{StatusIdle, StatusFetching, StatusFresh, StatusStale, StatusErrored} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("query: unknown status %q", b)
}

// State is what observers see for one key.
//
// IsLoading is only true while the first fetch of a key (or the first fetch
// after eviction or a failed first fetch) is running; background refreshes
// keep serving Data with IsLoading false. Err holds the most recent failure
// and is cleared by the next success. Data survives failures.
type State[T any] struct {
	Key        Key
	Data       *T
	IsLoading  bool
	IsFetching bool
	Err        error
	Status     Status
	UpdatedAt  time.Time // time of the last successful fetch; zero before one
}

// EntryInfo is a diagnostic view of one entry.
type EntryInfo struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	Fetching  bool      `json:"fetching"`
	Observers int       `json:"observers"`
	HasData   bool      `json:"has_data"`
	UpdatedAt time.Time `json:"updated_at"`
	LastUsed  time.Time `json:"last_used"`
	Error     string    `json:"error,omitempty"`
}
