package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when every retry attempt failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client defaults, applied by NewClient for zero fields.
const (
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures a resilient HTTP client.
type ClientConfig struct {
	// Name identifies the client for breaker naming and health tracking.
	Name string

	// Timeout bounds each individual HTTP call.
	Timeout time.Duration

	// MaxRetries bounds the retry attempts per request.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps the exponential backoff delay.
	MaxInterval time.Duration

	// CircuitBreaker overrides the breaker settings. Nil means defaults.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives this client for health reporting.
	Registry *Registry
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	if cfg.CircuitBreaker == nil {
		cb := DefaultCircuitBreakerConfig(cfg.Name)
		cfg.CircuitBreaker = &cb
	}
	return cfg
}

// DefaultClientConfig returns the default client configuration for name.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{Name: name}.withDefaults()
}

// Client wraps http.Client with a circuit breaker and exponential-backoff
// retries. Provider clients share this so upstream flakiness degrades
// gracefully instead of cascading.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	config     ClientConfig
}

// NewClient builds a resilient HTTP client. When cfg.Registry is set the
// client registers itself under cfg.Name so health surfaces can report
// breaker state.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type param, not a response
		registry:   cfg.Registry,
		config:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Do executes the request with breaker protection and retries. Transient
// failures (network errors, 5xx) retry with exponential backoff; an open
// breaker fails fast with ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do bound to ctx, which also cancels backoff waits.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastResp *http.Response

	attempt := func() error {
		// 5xx responses come back as errors so they count against the breaker.
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(attempt, c.newBackOff(ctx)); err != nil {
		c.recordFailure(err)
		// A 5xx that exhausted retries still hands the response to the caller.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return lastResp, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed time

	return backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// CircuitBreakerState reports the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts reports the breaker's rolling counts.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError marks an HTTP 5xx so retries and the breaker can react to it.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
