// Package resilience wraps outbound HTTP calls to external providers with
// timeouts, bounded retries, and a circuit breaker, and tracks per-provider
// health for the ops surface.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker defaults.
const (
	defaultBreakerTimeout = 60 * time.Second

	// tripMinRequests and tripFailureRatio define the default trip rule:
	// half the calls failing across at least five requests.
	tripMinRequests  = 5
	tripFailureRatio = 0.5
)

// CircuitBreakerConfig tunes one provider's breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and health snapshots.
	Name string

	// MaxRequests caps probe requests while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the closed-state counter reset period; zero keeps
	// counts for the life of the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// Default: 60 seconds
	Timeout time.Duration

	// ReadyToTrip overrides the default trip rule when set.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange observes breaker transitions.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the standard breaker tuning for a
// provider.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     defaultBreakerTimeout,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip is the standard trip rule: at least five requests
// seen and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < tripMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= tripFailureRatio
}

// NewCircuitBreaker builds a gobreaker instance from the config.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
