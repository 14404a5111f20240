package query

import (
	"context"
	"errors"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
	"github.com/tbourn/go-bot-dashboard/internal/resilience"
	"github.com/tbourn/go-bot-dashboard/internal/statsclient"
)

// ResourceStatistics is the resource half of every statistics cache key.
const ResourceStatistics = "stats"

// StatisticsSource fetches one snapshot. *statsclient.Client satisfies it.
type StatisticsSource interface {
	FetchStatistics(ctx context.Context, p domain.Period) (*domain.StatisticsSnapshot, error)
}

// StatisticsState is the observer-facing view of one period.
type StatisticsState = State[domain.StatisticsSnapshot]

// StatisticsOptions configures NewStatistics.
type StatisticsOptions struct {
	Cache Options
	Retry resilience.RetryConfig
	// Breaker wraps retried fetches in a circuit breaker when non-nil.
	Breaker *resilience.BreakerConfig
}

// Statistics is the process-wide statistics cache keyed by period.
type Statistics struct {
	cache    *Cache[domain.StatisticsSnapshot]
	executor *resilience.Executor[*domain.StatisticsSnapshot]
}

// StatisticsKey returns the cache key for p.
func StatisticsKey(p domain.Period) Key {
	return Key{Resource: ResourceStatistics, Period: p}
}

// NewStatistics builds the statistics cache over src. Only transport
// failures are retried; malformed payloads fail at once and do not count
// against the breaker.
func NewStatistics(src StatisticsSource, opts StatisticsOptions) *Statistics {
	logger := opts.Cache.withDefaults().Logger

	retry := opts.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = func(err error) bool { return errors.Is(err, statsclient.ErrTransport) }
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("retrying statistics fetch")
		}
	}

	var breaker *resilience.BreakerConfig
	if opts.Breaker != nil {
		b := *opts.Breaker
		b.IsSuccessful = func(err error) bool {
			return err == nil || !errors.Is(err, statsclient.ErrTransport)
		}
		b.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		}
		breaker = &b
	}

	s := &Statistics{executor: resilience.NewExecutor[*domain.StatisticsSnapshot](retry, breaker)}
	s.cache = New(s.fetcher(src), opts.Cache)
	return s
}

func (s *Statistics) fetcher(src StatisticsSource) Fetcher[domain.StatisticsSnapshot] {
	return func(ctx context.Context, key Key) (*domain.StatisticsSnapshot, error) {
		snap, err := s.executor.Execute(ctx, func() (*domain.StatisticsSnapshot, error) {
			return src.FetchStatistics(ctx, key.Period)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &statsclient.TransportError{Op: "fetch_statistics", Err: err}
		}
		return snap, err
	}
}

// Use attaches fn to period p and returns the subscription plus current
// state. It is the dashboard's useStatistics(period).
func (s *Statistics) Use(p domain.Period, fn func(StatisticsState)) (*Subscription[domain.StatisticsSnapshot], StatisticsState, error) {
	if !p.Valid() {
		return nil, StatisticsState{}, domain.ErrInvalidPeriod
	}
	return s.cache.Observe(StatisticsKey(p), fn)
}

// Get returns the snapshot state for p, waiting only for a first fetch.
func (s *Statistics) Get(ctx context.Context, p domain.Period) (StatisticsState, error) {
	if !p.Valid() {
		return StatisticsState{}, domain.ErrInvalidPeriod
	}
	return s.cache.Query(ctx, StatisticsKey(p))
}

// Peek returns the cached state for p without fetching.
func (s *Statistics) Peek(p domain.Period) StatisticsState {
	return s.cache.Peek(StatisticsKey(p))
}

// Refetch forces a fetch for p.
func (s *Statistics) Refetch(p domain.Period) error {
	if !p.Valid() {
		return domain.ErrInvalidPeriod
	}
	return s.cache.Refetch(StatisticsKey(p))
}

// Prefetch warms p if it has no fresh data.
func (s *Statistics) Prefetch(p domain.Period) error {
	if !p.Valid() {
		return domain.ErrInvalidPeriod
	}
	return s.cache.Prefetch(StatisticsKey(p))
}

// Invalidate marks p stale.
func (s *Statistics) Invalidate(p domain.Period) {
	s.cache.Invalidate(StatisticsKey(p))
}

// Entries lists cache entries for diagnostics.
func (s *Statistics) Entries() []EntryInfo { return s.cache.Entries() }

// BreakerState reports the circuit breaker state, or "disabled".
func (s *Statistics) BreakerState() string {
	if cb := s.executor.CircuitBreaker(); cb != nil {
		return cb.State().String()
	}
	return "disabled"
}

// BreakerStats is a snapshot of the upstream circuit breaker counters for
// the current generation.
type BreakerStats struct {
	Name                 string `json:"name" example:"stats-upstream"`
	State                string `json:"state" example:"closed"`
	Requests             uint32 `json:"requests" example:"12"`
	TotalSuccesses       uint32 `json:"total_successes" example:"11"`
	TotalFailures        uint32 `json:"total_failures" example:"1"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes" example:"3"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures" example:"0"`
}

// Breaker returns the breaker counters, or nil when no breaker is configured.
func (s *Statistics) Breaker() *BreakerStats {
	cb := s.executor.CircuitBreaker()
	if cb == nil {
		return nil
	}
	counts := cb.Counts()
	return &BreakerStats{
		Name:                 cb.Name(),
		State:                cb.State().String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// Close releases the cache.
func (s *Statistics) Close() error { return s.cache.Close() }

// Watcher follows one selected period, the way a dashboard page does.
// Switching periods detaches from the old key and attaches to the new one;
// the old entry and any fetch it has running are left alone.
type Watcher struct {
	stats *Statistics
	fn    func(StatisticsState)

	mu     sync.Mutex
	period domain.Period
	sub    *Subscription[domain.StatisticsSnapshot]
}

// Watch attaches to p and returns the watcher with the initial state. fn
// must not call back into the Watcher.
func (s *Statistics) Watch(p domain.Period, fn func(StatisticsState)) (*Watcher, StatisticsState, error) {
	if fn == nil {
		fn = func(StatisticsState) {}
	}
	w := &Watcher{stats: s, fn: fn}
	st, err := w.SetPeriod(p)
	if err != nil {
		return nil, StatisticsState{}, err
	}
	return w, st, nil
}

// Period returns the selected period.
func (w *Watcher) Period() domain.Period {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

// SetPeriod switches the watcher to p. Selecting the current period returns
// the current state without re-attaching.
func (w *Watcher) SetPeriod(p domain.Period) (StatisticsState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil && p == w.period {
		return w.sub.State(), nil
	}
	sub, st, err := w.stats.Use(p, w.fn)
	if err != nil {
		return StatisticsState{}, err
	}
	if w.sub != nil {
		w.sub.Close()
	}
	w.sub, w.period = sub, p
	return st, nil
}

// Close detaches the watcher.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		w.sub.Close()
		w.sub = nil
	}
}
