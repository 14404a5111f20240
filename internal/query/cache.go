// Package query is the period-scoped cache in front of the statistics
// backend.
//
// Each Key owns one entry. An entry is created on first observation, serves
// its last good value while fresh (now - UpdatedAt < StaleTime), and is
// refreshed in the background once stale, either by the next observation or
// by the refresh ticker that runs while at least one observer is attached.
// Concurrent requests for the same key share one in-flight fetch. Fetches
// are never cancelled by observers leaving; their result is cached for later.
//
// Observers register a callback per key and are notified in transition
// order. Callbacks run on the goroutine that caused the transition, outside
// the cache lock, and may call back into the cache.
package query

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("query: cache closed")

// Defaults match the dashboard's reference behaviour.
const (
	DefaultStaleTime       = 5 * time.Minute
	DefaultRefetchInterval = time.Minute
)

// Fetcher loads the value for key. It must honour ctx cancellation.
type Fetcher[T any] func(ctx context.Context, key Key) (*T, error)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	// StaleTime is how long a successful fetch is served without refetching.
	StaleTime time.Duration
	// RefetchInterval is how often the ticker looks for entries to refresh;
	// negative disables it. Only observed entries that are stale or
	// invalidated are refetched, so an entry is refreshed at most once per
	// StaleTime even when RefetchInterval is shorter.
	RefetchInterval time.Duration
	// MaxEntries bounds the number of entries (0 = unbounded). Only entries
	// without observers or a running fetch are evicted, least recently used
	// first.
	MaxEntries int
	// FetchTimeout bounds a whole fetch including retries (0 = none).
	FetchTimeout time.Duration
	Clock        clockwork.Clock
	Logger       *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.StaleTime == 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.RefetchInterval == 0 {
		o.RefetchInterval = DefaultRefetchInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		l := log.With().Str("component", "query").Logger()
		o.Logger = &l
	}
	return o
}

type observer[T any] struct {
	id     uint64
	fn     func(State[T])
	closed atomic.Bool
}

type entry[T any] struct {
	key         Key
	data        *T
	fetchedAt   time.Time
	err         error
	fetching    bool
	invalidated bool
	lastUsed    time.Time
	observers   map[uint64]*observer[T]
}

type notification[T any] struct {
	observers []*observer[T]
	state     State[T]
}

// Cache is a keyed, observable, self-refreshing cache. It is safe for
// concurrent use. Create one per process with New and Close it on exit.
type Cache[T any] struct {
	fetch Fetcher[T]
	opts  Options
	clock clockwork.Clock
	log   *zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	group   singleflight.Group
	wg      sync.WaitGroup

	mu        sync.Mutex
	entries   map[Key]*entry[T]
	nextID    uint64
	observers int
	closed    bool

	tickerStop chan struct{}
	tickerDone chan struct{}

	queue    []notification[T]
	draining bool
}

// New returns a Cache backed by fetch.
func New[T any](fetch Fetcher[T], opts Options) *Cache[T] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[T]{
		fetch:   fetch,
		opts:    opts,
		clock:   opts.Clock,
		log:     opts.Logger,
		baseCtx: ctx,
		cancel:  cancel,
		entries: make(map[Key]*entry[T]),
	}
}

// Subscription is one observer attachment. Close detaches it.
type Subscription[T any] struct {
	cache *Cache[T]
	key   Key
	obs   *observer[T]
	once  sync.Once
}

// Key returns the observed key.
func (s *Subscription[T]) Key() Key { return s.key }

// State returns the current state of the observed key.
func (s *Subscription[T]) State() State[T] { return s.cache.Peek(s.key) }

// Close detaches the observer. It is safe to call more than once. A fetch
// started for this key keeps running and still populates the cache.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.obs.closed.Store(true)
		s.cache.detach(s.key, s.obs.id)
	})
}

// Observe attaches fn to key and returns the subscription together with the
// state right after attaching. Attaching counts as an observation: a missing,
// stale, invalidated or failed entry starts a fetch. fn is called on every
// later transition of the entry.
func (c *Cache[T]) Observe(key Key, fn func(State[T])) (*Subscription[T], State[T], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, State[T]{}, ErrClosed
	}
	if fn == nil {
		fn = func(State[T]) {}
	}
	e := c.entryLocked(key)
	c.nextID++
	obs := &observer[T]{id: c.nextID, fn: fn}
	e.observers[obs.id] = obs
	c.observers++
	observersGauge.Inc()
	if c.observers == 1 {
		c.startTickerLocked()
	}
	c.observeLocked(e)
	st := c.stateLocked(e)
	c.mu.Unlock()

	c.drain()
	return &Subscription[T]{cache: c, key: key, obs: obs}, st, nil
}

// Query returns the state of key, waiting for a fetch only when there is no
// data yet. Stale data is returned at once while a background refresh runs.
// The returned error is ctx.Err() or ErrClosed; fetch failures are reported
// in State.Err. Cancelling ctx never cancels the fetch itself.
func (c *Cache[T]) Query(ctx context.Context, key Key) (State[T], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State[T]{}, ErrClosed
	}
	e := c.entryLocked(key)
	ch := c.observeLocked(e)
	if e.data != nil || ch == nil {
		st := c.stateLocked(e)
		c.mu.Unlock()
		c.drain()
		return st, nil
	}
	c.mu.Unlock()
	c.drain()

	select {
	case <-ch:
		return c.Peek(key), nil
	case <-ctx.Done():
		return c.Peek(key), ctx.Err()
	}
}

// Peek returns the current state of key without fetching.
func (c *Cache[T]) Peek(key Key) State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return State[T]{Key: key, Status: StatusIdle}
	}
	return c.stateLocked(e)
}

// Refetch starts a fetch for key unless one is already running, regardless
// of freshness. It is the manual retry for errored entries.
func (c *Cache[T]) Refetch(key Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	e := c.entryLocked(key)
	e.lastUsed = c.clock.Now()
	if !e.fetching {
		c.startFetchLocked(e)
	}
	c.mu.Unlock()
	c.drain()
	return nil
}

// Prefetch starts a fetch for key if it has no fresh data. It does not
// attach an observer.
func (c *Cache[T]) Prefetch(key Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.observeLocked(c.entryLocked(key))
	c.mu.Unlock()
	c.drain()
	return nil
}

// Invalidate marks key stale. Observed keys are refetched immediately; the
// others on their next observation. UpdatedAt is left untouched.
func (c *Cache[T]) Invalidate(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	e.invalidated = true
	if len(e.observers) > 0 && !e.fetching {
		c.startFetchLocked(e)
	}
	c.mu.Unlock()
	c.drain()
}

// Entries lists all entries ordered by key.
func (c *Cache[T]) Entries() []EntryInfo {
	c.mu.Lock()
	out := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		info := EntryInfo{
			Key:       e.key.String(),
			Status:    c.statusLocked(e),
			Fetching:  e.fetching,
			Observers: len(e.observers),
			HasData:   e.data != nil,
			UpdatedAt: e.fetchedAt,
			LastUsed:  e.lastUsed,
		}
		if e.err != nil {
			info.Error = e.err.Error()
		}
		out = append(out, info)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close stops the refresh ticker, cancels running fetches and waits for
// them to finish. Operations after Close return ErrClosed.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	done := c.stopTickerLocked()
	c.mu.Unlock()

	c.cancel()
	if done != nil {
		<-done
	}
	c.wg.Wait()
	return nil
}

// ---- internals (c.mu held unless noted) ----

func (c *Cache[T]) entryLocked(key Key) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{key: key, lastUsed: c.clock.Now(), observers: make(map[uint64]*observer[T])}
		c.entries[key] = e
		c.evictLocked(e)
	}
	return e
}

func (c *Cache[T]) staleLocked(e *entry[T], now time.Time) bool {
	return e.data == nil || e.invalidated || now.Sub(e.fetchedAt) >= c.opts.StaleTime
}

// observeLocked records an observation of e and starts a fetch when needed.
// It returns the in-flight channel when e is fetching, nil otherwise.
func (c *Cache[T]) observeLocked(e *entry[T]) <-chan singleflight.Result {
	now := c.clock.Now()
	e.lastUsed = now

	switch {
	case e.fetching:
		lookups.WithLabelValues(e.key.Resource, lookupResult(e)).Inc()
		return c.group.DoChan(e.key.String(), nil)
	case e.err == nil && !c.staleLocked(e, now):
		lookups.WithLabelValues(e.key.Resource, "hit").Inc()
		return nil
	default:
		lookups.WithLabelValues(e.key.Resource, lookupResult(e)).Inc()
		return c.startFetchLocked(e)
	}
}

func lookupResult[T any](e *entry[T]) string {
	if e.data == nil {
		return "miss"
	}
	return "stale"
}

// startFetchLocked marks e in-flight and launches the shared fetch. DoChan
// is called under c.mu so that a second caller can only ever join the call
// registered here.
func (c *Cache[T]) startFetchLocked(e *entry[T]) <-chan singleflight.Result {
	key := e.key
	e.fetching = true
	c.wg.Add(1)
	inflight.Inc()
	ch := c.group.DoChan(key.String(), func() (any, error) {
		defer c.wg.Done()
		defer inflight.Dec()
		return c.run(key)
	})
	c.enqueueLocked(e)
	return ch
}

// run executes one fetch and applies its outcome. It runs on the
// singleflight goroutine without c.mu held.
func (c *Cache[T]) run(key Key) (any, error) {
	ctx := c.baseCtx
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	data, err := c.fetch(ctx, key)
	fetches.WithLabelValues(key.Resource, string(key.Period), fetchResult(err)).Inc()

	c.mu.Lock()
	// Later callers must start a new call instead of joining this one.
	c.group.Forget(key.String())
	if e, ok := c.entries[key]; ok {
		c.completeLocked(e, data, err)
	}
	c.mu.Unlock()
	c.drain()

	if err != nil {
		c.log.Warn().Err(err).Str("key", key.String()).Msg("fetch failed")
	}
	return data, err
}

func (c *Cache[T]) completeLocked(e *entry[T], data *T, err error) {
	e.fetching = false
	if err != nil {
		e.err = err
	} else {
		e.data = data
		e.err = nil
		e.invalidated = false
		if now := c.clock.Now(); now.After(e.fetchedAt) {
			e.fetchedAt = now
		}
	}
	c.enqueueLocked(e)
}

func (c *Cache[T]) detach(key Key, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if _, ok := e.observers[id]; !ok {
		return
	}
	delete(e.observers, id)
	e.lastUsed = c.clock.Now()
	c.observers--
	observersGauge.Dec()
	if c.observers == 0 {
		// The ticker goroutine exits on its own; no need to wait here.
		c.stopTickerLocked()
	}
	c.evictLocked(nil)
}

func (c *Cache[T]) statusLocked(e *entry[T]) Status {
	switch {
	case e.fetching && e.data == nil:
		return StatusFetching
	case e.err != nil && !e.fetching:
		return StatusErrored
	case e.data == nil:
		return StatusIdle
	case c.staleLocked(e, c.clock.Now()):
		return StatusStale
	default:
		return StatusFresh
	}
}

func (c *Cache[T]) stateLocked(e *entry[T]) State[T] {
	return State[T]{
		Key:        e.key,
		Data:       e.data,
		IsLoading:  e.fetching && e.data == nil,
		IsFetching: e.fetching,
		Err:        e.err,
		Status:     c.statusLocked(e),
		UpdatedAt:  e.fetchedAt,
	}
}

// evictLocked drops least recently used idle entries above MaxEntries.
// keep is never evicted.
func (c *Cache[T]) evictLocked(keep *entry[T]) {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.entries) > c.opts.MaxEntries {
		var victim *entry[T]
		for _, e := range c.entries {
			if e == keep || e.fetching || len(e.observers) > 0 {
				continue
			}
			if victim == nil || e.lastUsed.Before(victim.lastUsed) {
				victim = e
			}
		}
		if victim == nil {
			return
		}
		delete(c.entries, victim.key)
		evictions.Inc()
		c.log.Debug().Str("key", victim.key.String()).Msg("cache entry evicted")
	}
}

// ---- notifications ----

func (c *Cache[T]) enqueueLocked(e *entry[T]) {
	if len(e.observers) == 0 {
		return
	}
	obs := make([]*observer[T], 0, len(e.observers))
	for _, o := range e.observers {
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].id < obs[j].id })
	c.queue = append(c.queue, notification[T]{observers: obs, state: c.stateLocked(e)})
}

// drain delivers queued notifications in order. Only one goroutine drains
// at a time; notifications queued meanwhile are delivered by that goroutine.
// Must be called without c.mu held.
func (c *Cache[T]) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		n := c.queue[0]
		c.queue[0] = notification[T]{}
		c.queue = c.queue[1:]
		c.mu.Unlock()
		for _, o := range n.observers {
			if !o.closed.Load() {
				o.fn(n.state)
			}
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

// ---- refresh ticker ----

func (c *Cache[T]) startTickerLocked() {
	if c.opts.RefetchInterval < 0 || c.tickerStop != nil || c.closed {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.tickerStop, c.tickerDone = stop, done
	ticker := c.clock.NewTicker(c.opts.RefetchInterval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.baseCtx.Done():
				return
			case <-ticker.Chan():
				c.tick()
			}
		}
	}()
}

// stopTickerLocked signals the ticker goroutine and returns its done channel.
func (c *Cache[T]) stopTickerLocked() <-chan struct{} {
	if c.tickerStop == nil {
		return nil
	}
	close(c.tickerStop)
	done := c.tickerDone
	c.tickerStop, c.tickerDone = nil, nil
	return done
}

// tick refreshes every observed entry that is stale and idle.
func (c *Cache[T]) tick() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	for _, e := range c.entries {
		if len(e.observers) == 0 || e.fetching || !c.staleLocked(e, now) {
			continue
		}
		c.startFetchLocked(e)
	}
	c.mu.Unlock()
	c.drain()
}
