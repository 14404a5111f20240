package statsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
)

const sampleSnapshot = `{
	"summary": {"total_users": 150, "total_messages": 4523, "active_dialogs": 89},
	"activity_timeline": [
		{"timestamp": "2025-10-17T10:00:00Z", "message_count": 145, "active_users": 42},
		{"timestamp": "2025-10-17T11:00:00Z", "message_count": 120, "active_users": 40}
	],
	"recent_dialogs": [{"user_id": 123456789, "message_count": 25, "last_message_at": "2025-10-17T15:30:00Z", "duration_minutes": 45}],
	"top_users": [{"user_id": 123456789, "total_messages": 523, "dialog_count": 45, "last_activity": "2025-10-17T15:30:00Z"}]
}`

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, Timeout: 2 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{BaseURL: "  "}); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	c, err := New(Config{BaseURL: "http://example.com/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Timeout() != DefaultTimeout {
		t.Fatalf("default timeout = %v; want %v", c.Timeout(), DefaultTimeout)
	}
}

func TestFetchStatistics_Success_QueryHeadersAuth(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodGet {
			t.Errorf("method = %s; want GET", r.Method)
		}
		if r.URL.Path != "/api/v1/stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("period"); got != "day" {
			t.Errorf("period = %q; want day", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		u, p, ok := r.BasicAuth()
		if !ok || u != "admin" || p != "secret" {
			t.Errorf("basic auth = %q/%q/%v", u, p, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleSnapshot))
	}, func(cfg *Config) {
		cfg.Username = "admin"
		cfg.Password = "secret"
	})

	snap, err := c.FetchStatistics(context.Background(), domain.PeriodDay)
	if err != nil {
		t.Fatalf("FetchStatistics: %v", err)
	}
	if snap.Summary.TotalMessages != 4523 || len(snap.ActivityTimeline) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.ActivityTimeline[0].Timestamp != "2025-10-17T10:00:00Z" {
		t.Fatalf("timeline order not preserved: %+v", snap.ActivityTimeline)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestFetchStatistics_NoAuthWhenUsernameEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Errorf("unexpected basic auth header")
		}
		_, _ = w.Write([]byte(sampleSnapshot))
	})
	if _, err := c.FetchStatistics(context.Background(), domain.PeriodWeek); err != nil {
		t.Fatalf("FetchStatistics: %v", err)
	}
}

func TestFetchStatistics_BasePathPrefixKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/backend/api/v1/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(sampleSnapshot))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/backend/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.FetchStatistics(context.Background(), domain.PeriodMonth); err != nil {
		t.Fatalf("FetchStatistics: %v", err)
	}
}

func TestFetchStatistics_NonSuccessStatus_IsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	})
	_, err := c.FetchStatistics(context.Background(), domain.PeriodDay)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected TransportError with 503, got %#v", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("transport error must not match ErrMalformedResponse")
	}
}

func TestFetchStatistics_Timeout_IsTransportError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	defer close(release)

	_, err := c.FetchStatistics(context.Background(), domain.PeriodWeek)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != 0 || te.Err == nil {
		t.Fatalf("unexpected timeout error shape: %#v", te)
	}
}

func TestFetchStatistics_NetworkFailure_IsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: addr, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.FetchStatistics(context.Background(), domain.PeriodDay); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestFetchStatistics_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `<html>oops</html>`,
		"missing summary":   `{"activity_timeline": [], "recent_dialogs": [], "top_users": []}`,
		"timeline not list": `{"summary": {"total_users": 1, "total_messages": 1, "active_dialogs": 1}, "activity_timeline": {}, "recent_dialogs": [], "top_users": []}`,
		"summary field str": `{"summary": {"total_users": "1", "total_messages": 1, "active_dialogs": 1}, "activity_timeline": [], "recent_dialogs": [], "top_users": []}`,
		"wrong item type":   `{"summary": {"total_users": 1, "total_messages": 1, "active_dialogs": 1}, "activity_timeline": [{"message_count": "x"}], "recent_dialogs": [], "top_users": []}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.FetchStatistics(context.Background(), domain.PeriodDay)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			var me *MalformedResponseError
			if !errors.As(err, &me) || !strings.Contains(me.URL, "period=day") {
				t.Fatalf("unexpected error shape: %#v", err)
			}
		})
	}
}

func TestFetchStatistics_EmptyCollectionsAccepted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary": {"total_users": 0, "total_messages": 0, "active_dialogs": 0}, "activity_timeline": [], "recent_dialogs": [], "top_users": []}`))
	})
	snap, err := c.FetchStatistics(context.Background(), domain.PeriodDay)
	if err != nil {
		t.Fatalf("FetchStatistics: %v", err)
	}
	if len(snap.ActivityTimeline) != 0 || len(snap.TopUsers) != 0 {
		t.Fatalf("expected empty collections: %+v", snap)
	}
}

func TestCheckLiveness(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	st, err := c.CheckLiveness(context.Background())
	if err != nil {
		t.Fatalf("CheckLiveness: %v", err)
	}
	if st.Status != "ok" {
		t.Fatalf("status = %q", st.Status)
	}
}

func TestCheckLiveness_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"healthy":true}`))
	})
	if _, err := c.CheckLiveness(context.Background()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.CheckLiveness(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestOutcomeLabels(t *testing.T) {
	if outcome(200, nil) != "ok" {
		t.Fatalf("ok outcome")
	}
	if outcome(502, errors.New("x")) != "502" {
		t.Fatalf("status outcome")
	}
	if outcome(0, context.DeadlineExceeded) != "timeout" {
		t.Fatalf("timeout outcome")
	}
	if outcome(0, errors.New("refused")) != "network" {
		t.Fatalf("network outcome")
	}
}
