package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ThrottleConfig configures the rate limiter and circuit breaker a
// ThrottledAdapter wraps around a ProviderAdapter.
type ThrottleConfig struct {
	RPS                 float64
	Burst               int
	ConsecutiveFailures uint32 // breaker opens after this many consecutive failures
	OpenTimeout         time.Duration
}

// DefaultThrottleConfig is a conservative MVP default: 5 req/s, burst 10,
// breaker opens after 5 consecutive failures and half-opens after 30s.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{RPS: 5, Burst: 10, ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// ThrottledAdapter wraps a ProviderAdapter with a token-bucket limiter
// (golang.org/x/time/rate) and a circuit breaker (github.com/sony/gobreaker)
// that opens on repeated ProviderFetchError, one breaker per adapter
// instance.
type ThrottledAdapter struct {
	inner   ProviderAdapter
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewThrottledAdapter wraps inner with rate limiting and circuit breaking
// per cfg.
func NewThrottledAdapter(inner ProviderAdapter, cfg ThrottleConfig) *ThrottledAdapter {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &ThrottledAdapter{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name delegates to the wrapped adapter.
func (t *ThrottledAdapter) Name() string { return t.inner.Name() }

// Fetch waits for a rate-limiter token, then calls the wrapped adapter
// through the circuit breaker. A breaker trip surfaces as a
// ProviderFetchError so callers never need to know about gobreaker.
func (t *ThrottledAdapter) Fetch(ctx context.Context, req FetchRequest) (RawResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return RawResponse{}, &ProviderFetchError{Provider: t.inner.Name(), Err: fmt.Errorf("rate limiter: %w", err)}
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.inner.Fetch(ctx, req)
		if err != nil {
			return RawResponse{}, err
		}
		return resp, nil
	})
	if err != nil {
		return RawResponse{}, &ProviderFetchError{Provider: t.inner.Name(), Err: err}
	}
	return result.(RawResponse), nil
}

var _ ProviderAdapter = (*ThrottledAdapter)(nil)
