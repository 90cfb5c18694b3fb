// Package traffic defines the estimator surface used to sample live road
// conditions per grid route.
package traffic

import (
	"context"
	"errors"
	"time"

	"github.com/trafficlens/trafficlens/internal/grid"
)

// Sentinel errors for estimator operations.
var (
	// ErrUnavailable indicates the estimator is down, timing out, or its
	// circuit breaker is open. Transient: later calls may succeed.
	ErrUnavailable = errors.New("traffic estimator unavailable")
	// ErrRateLimited indicates the API quota has been exceeded.
	ErrRateLimited = errors.New("traffic estimator rate limit exceeded")
	// ErrUnauthorized indicates the estimator rejected the configured
	// credentials. Not transient: no later call succeeds until the key is
	// fixed, so a collection run treats this as fatal.
	ErrUnauthorized = errors.New("traffic estimator rejected credentials")
	// ErrInvalidCoordinates indicates the request coordinates are out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Estimate is one sampled observation for a single route. Available is
// false when the provider had no data for the segment; the remaining
// fields are zero in that case.
type Estimate struct {
	SpeedKMH       float64
	TravelTime     time.Duration
	DistanceMeters float64
	Available      bool
}

// Estimator is the external traffic data source. Implementations are
// invoked exactly once per route per fire and must be safe for concurrent
// use.
type Estimator interface {
	// Estimate samples current conditions for the directed segment from
	// origin to destination. A segment the provider cannot answer for
	// returns Available:false with a nil error; an error return means the
	// call itself failed.
	Estimate(ctx context.Context, origin, destination grid.Coordinate) (Estimate, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Error provides detailed error information from the traffic provider.
type Error struct {
	Provider string // provider that generated the error
	Code     string // provider-specific error code
	Message  string // human-readable message
	Err      error  // underlying sentinel
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error poisons every later estimate too, such
// as rejected credentials. A fatal estimator error aborts the collection
// run; anything else only marks the affected route unavailable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
