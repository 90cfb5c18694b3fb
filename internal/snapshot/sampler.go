package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/traffic"
)

// Sampler defaults.
const (
	DefaultConcurrency  = 4
	DefaultRouteTimeout = 15 * time.Second
)

// Sampler assembles snapshots by querying the traffic estimator once per
// grid route. A per-route failure becomes an unavailable sample; only a
// fatal estimator error aborts the whole snapshot.
type Sampler struct {
	estimator   traffic.Estimator
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger
	metrics     *SamplerMetrics
}

// SamplerConfig holds configuration for creating a Sampler.
type SamplerConfig struct {
	Estimator traffic.Estimator

	// Concurrency is the number of concurrent estimator calls.
	// Default: 4
	Concurrency int

	// Timeout is the timeout for a single route estimate.
	// Default: 15 seconds
	Timeout time.Duration

	Logger zerolog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *SamplerMetrics
}

// NewSampler creates a new snapshot sampler.
func NewSampler(cfg SamplerConfig) *Sampler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRouteTimeout
	}

	return &Sampler{
		estimator:   cfg.Estimator,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

type routeResult struct {
	index  int
	sample RouteSample
	err    error
}

// Sample queries the estimator for every route and assembles a single
// timestamped snapshot. Partial data is valid: routes the estimator cannot
// answer for are marked unavailable, and a snapshot with no available
// routes is still returned. The error is non-nil only when the estimator
// fails fatally or ctx is cancelled; no partial snapshot is returned then.
func (s *Sampler) Sample(ctx context.Context, areaID string, routes []grid.Route) (*Snapshot, error) {
	capturedAt := time.Now().UTC()

	sampleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int, len(routes))
	results := make(chan routeResult, len(routes))

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sampleWorker(sampleCtx, routes, jobs, results)
		}()
	}

	for i := range routes {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	samples := make([]RouteSample, len(routes))
	var fatal error
	for res := range results {
		samples[res.index] = res.sample
		if res.err != nil && fatal == nil && traffic.IsFatal(res.err) {
			fatal = res.err
			// Stop the remaining workers; in-flight calls drain normally
			cancel()
		}
	}

	if fatal != nil {
		return nil, fmt.Errorf("estimator failure: %w", fatal)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := newSnapshot(areaID, capturedAt, samples)
	s.metrics.RecordSnapshot(ctx, areaID, snap.SampleCount, snap.RouteCount)

	s.logger.Debug().
		Str("area_id", areaID).
		Int("routes", snap.RouteCount).
		Int("available", snap.SampleCount).
		Float64("avg_speed_kmh", snap.AvgSpeedKMH).
		Msg("snapshot assembled")

	return snap, nil
}

func (s *Sampler) sampleWorker(ctx context.Context, routes []grid.Route, jobs <-chan int, results chan<- routeResult) {
	for idx := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		route := routes[idx]

		start := time.Now()
		routeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		est, err := s.estimator.Estimate(routeCtx, route.Origin, route.Destination)
		cancel()
		s.metrics.RecordRoute(ctx, time.Since(start), err == nil && est.Available, err)

		sample := RouteSample{
			RouteID:        route.ID,
			DistanceMeters: route.LengthMeters,
		}
		if err == nil && est.Available {
			sample.SpeedKMH = est.SpeedKMH
			sample.TravelTime = est.TravelTime
			sample.Available = true
			// Prefer the estimator's road distance over the grid's
			// great-circle length when it reports one
			if est.DistanceMeters > 0 {
				sample.DistanceMeters = est.DistanceMeters
			}
		}
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("route_id", route.ID).
				Msg("route sample unavailable")
		}

		results <- routeResult{index: idx, sample: sample, err: err}
	}
}
