// Package statsclient is the HTTP client for the bot statistics backend.
//
// It issues exactly one request per call: no retries, no caching. Retry and
// freshness policy live in the query package, which is the only intended
// caller. Every call is bounded by the configured timeout and traced with
// OpenTelemetry; the upstream trace context is propagated in request headers.
package statsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
)

const (
	statsPath  = "/api/v1/stats"
	healthPath = "/health"

	// DefaultTimeout matches the dashboard's reference transport timeout.
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL  string        // e.g. http://localhost:8000
	Username string        // basic auth; empty disables auth
	Password string        // basic auth password
	Timeout  time.Duration // <= 0 uses DefaultTimeout

	// HTTPClient overrides the underlying client (tests). Its Timeout is
	// replaced by Config.Timeout.
	HTTPClient *http.Client
}

// Client talks to the statistics backend. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	username string
	password string
	timeout  time.Duration
	http     *http.Client
	tracer   trace.Tracer
}

// New validates cfg and returns a ready Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("statsclient: base URL must not be empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("statsclient: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("statsclient: unsupported scheme %q", base.Scheme)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		cp := *cfg.HTTPClient
		hc = &cp
	}
	hc.Timeout = timeout

	return &Client{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
		http:     hc,
		tracer:   otel.Tracer("github.com/tbourn/go-bot-dashboard/internal/statsclient"),
	}, nil
}

// Timeout returns the effective per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// FetchStatistics performs GET {base}/api/v1/stats?period=<p> and decodes the
// snapshot.
//
// Errors:
//   - *TransportError on network failure, timeout, or a non-2xx status
//   - *MalformedResponseError when the body is not a valid snapshot
func (c *Client) FetchStatistics(ctx context.Context, p domain.Period) (*domain.StatisticsSnapshot, error) {
	q := url.Values{}
	q.Set("period", p.String())

	body, u, err := c.get(ctx, "fetch_statistics", statsPath, q)
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, &MalformedResponseError{URL: u, Err: err}
	}
	return snap, nil
}

// CheckLiveness performs GET {base}/health.
func (c *Client) CheckLiveness(ctx context.Context) (*domain.HealthStatus, error) {
	body, u, err := c.get(ctx, "check_liveness", healthPath, nil)
	if err != nil {
		return nil, err
	}
	st := gjson.GetBytes(body, "status")
	if !gjson.ValidBytes(body) || st.Type != gjson.String {
		return nil, &MalformedResponseError{URL: u, Err: errors.New(`missing string field "status"`)}
	}
	return &domain.HealthStatus{Status: st.String()}, nil
}

// get runs one traced GET and returns the raw 2xx body.
func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, string, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()
	target := u.String()

	ctx, span := c.tracer.Start(ctx, "statsclient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", target),
		),
	)
	defer span.End()

	start := time.Now()
	body, status, err := c.do(ctx, target)
	observeUpstream(path, status, err, time.Since(start))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, target, &TransportError{Op: op, URL: target, StatusCode: nonOK(status), Err: err}
	}
	return body, target, nil
}

// do sends the request and reads the body. A non-2xx status is returned as an
// error together with the status code.
func (c *Client) do(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

// nonOK keeps StatusCode only for responses that were not successful.
func nonOK(status int) int {
	if status >= 200 && status <= 299 {
		return 0
	}
	return status
}

// decodeSnapshot checks the payload shape with gjson before decoding so that
// missing sections fail instead of silently decoding to zero values.
func decodeSnapshot(body []byte) (*domain.StatisticsSnapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON")
	}
	fields := gjson.GetManyBytes(body, "summary", "activity_timeline", "recent_dialogs", "top_users")
	if !fields[0].IsObject() {
		return nil, errors.New(`"summary" must be an object`)
	}
	for i, name := range []string{"activity_timeline", "recent_dialogs", "top_users"} {
		if !fields[i+1].IsArray() {
			return nil, fmt.Errorf("%q must be an array", name)
		}
	}
	for _, k := range []string{"total_users", "total_messages", "active_dialogs"} {
		if fields[0].Get(k).Type != gjson.Number {
			return nil, fmt.Errorf("summary.%s must be a number", k)
		}
	}

	var snap domain.StatisticsSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
