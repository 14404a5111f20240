// Package resilience wraps upstream calls with a retry policy and an
// optional circuit breaker. The breaker sits outside the retry loop, so one
// retried execution counts as a single breaker request.
package resilience

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sony/gobreaker"
)

// RetryConfig controls how failed executions are retried.
type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterDelay time.Duration
	// ShouldRetry selects retryable errors. nil retries every error.
	ShouldRetry func(err error) bool
	// OnRetry is called before each retry attempt (attempt starts at 1).
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig retries three times with exponential backoff starting
// at one second and capped at thirty.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	FailureRatio     float64
	MinRequests      uint32
	OnStateChange    func(name string, from, to gobreaker.State)
	IsSuccessful     func(err error) bool
}

// DefaultBreakerConfig trips after five consecutive failures and tries
// again after thirty seconds. Only nil errors count as successes.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.5,
		MinRequests:      10,
		IsSuccessful:     func(err error) bool { return err == nil },
	}
}

// CircuitBreaker is a thin wrapper over gobreaker.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker builds a breaker that trips on FailureThreshold
// consecutive failures, or once MinRequests have been seen and the failure
// ratio reaches FailureRatio.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureThreshold > 0 && counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if cfg.MinRequests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return cfg.FailureRatio > 0 && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (c *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return c.cb.Execute(fn)
}

func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

func (c *CircuitBreaker) Name() string {
	return c.cb.Name()
}

// NewRetryPolicy builds a failsafe retry policy from cfg. When retries are
// exhausted the last failure is returned unchanged.
func NewRetryPolicy[R any](cfg RetryConfig) retrypolicy.RetryPolicy[R] {
	builder := retrypolicy.NewBuilder[R]().
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure()
	if cfg.BaseDelay > 0 {
		maxDelay := cfg.MaxDelay
		if maxDelay < cfg.BaseDelay {
			maxDelay = cfg.BaseDelay
		}
		builder = builder.WithBackoff(cfg.BaseDelay, maxDelay)
	}
	if cfg.JitterDelay > 0 {
		builder = builder.WithJitter(cfg.JitterDelay)
	}
	if cfg.ShouldRetry != nil {
		shouldRetry := cfg.ShouldRetry
		builder = builder.HandleIf(func(_ R, err error) bool {
			return err != nil && shouldRetry(err)
		})
	}
	if cfg.OnRetry != nil {
		onRetry := cfg.OnRetry
		builder = builder.OnRetry(func(e failsafe.ExecutionEvent[R]) {
			onRetry(e.Retries(), e.LastError())
		})
	}
	return builder.Build()
}

// Executor runs functions through the retry policy and, when configured,
// the circuit breaker.
type Executor[R any] struct {
	executor failsafe.Executor[R]
	breaker  *CircuitBreaker
}

// NewExecutor returns an Executor. breakerConfig may be nil.
func NewExecutor[R any](retryConfig RetryConfig, breakerConfig *BreakerConfig) *Executor[R] {
	rp := NewRetryPolicy[R](retryConfig)

	var breaker *CircuitBreaker
	if breakerConfig != nil {
		breaker = NewCircuitBreaker(*breakerConfig)
	}

	return &Executor[R]{
		executor: failsafe.With(rp),
		breaker:  breaker,
	}
}

// Execute runs fn. Cancelling ctx aborts pending retry delays.
func (e *Executor[R]) Execute(ctx context.Context, fn func() (R, error)) (R, error) {
	if e.breaker != nil {
		result, err := e.breaker.Execute(func() (any, error) {
			return e.executor.WithContext(ctx).Get(fn)
		})
		if err != nil {
			var zero R
			return zero, err
		}
		return result.(R), nil
	}
	return e.executor.WithContext(ctx).Get(fn)
}

// CircuitBreaker returns the breaker, or nil when none is configured.
func (e *Executor[R]) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}
