package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/snapshot"
)

// Scheduler errors.
var (
	// ErrRunActive is returned by Start when a run already occupies the
	// process slot.
	ErrRunActive = errors.New("a training run is already active")

	// ErrNoActiveRun is returned by Pause and Cancel when no run is
	// active for the given area.
	ErrNoActiveRun = errors.New("no active training run for this area")
)

// Append retry defaults.
const (
	DefaultAppendMaxRetries    = 5
	DefaultAppendRetryInterval = 500 * time.Millisecond
)

// SchedulerConfig holds dependencies and tuning for a Scheduler.
type SchedulerConfig struct {
	Areas     area.Repository
	Snapshots snapshot.Repository
	Sampler   *snapshot.Sampler
	Logger    zerolog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics

	// AppendMaxRetries bounds store retry attempts per fire.
	// Default: 5
	AppendMaxRetries uint64

	// AppendRetryInterval is the initial retry backoff interval.
	// Default: 500ms
	AppendRetryInterval time.Duration
}

// Scheduler runs at most one collection run per process. It keeps no
// durable state of its own: a run started after a crash or pause
// recomputes everything it needs from the area record and the snapshot
// count.
type Scheduler struct {
	areas     area.Repository
	snapshots snapshot.Repository
	sampler   *snapshot.Sampler
	logger    zerolog.Logger
	metrics   *Metrics

	appendMaxRetries    uint64
	appendRetryInterval time.Duration

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	run    *Run
	pause  chan struct{}
	cancel chan struct{}
	done   chan struct{}

	// stopping is guarded by Scheduler.mu and makes each stop channel
	// close at most once.
	stopping bool
}

// NewScheduler creates a new collection scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.AppendMaxRetries == 0 {
		cfg.AppendMaxRetries = DefaultAppendMaxRetries
	}
	if cfg.AppendRetryInterval == 0 {
		cfg.AppendRetryInterval = DefaultAppendRetryInterval
	}

	return &Scheduler{
		areas:               cfg.Areas,
		snapshots:           cfg.Snapshots,
		sampler:             cfg.Sampler,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		appendMaxRetries:    cfg.AppendMaxRetries,
		appendRetryInterval: cfg.AppendRetryInterval,
	}
}

// Start begins or resumes collection for an area. The first snapshot is
// taken immediately; each subsequent fire starts one interval after the
// previous fire finished. Remaining work is recomputed from the store,
// so starting after a pause or crash picks up where collection left off.
func (s *Scheduler) Start(ctx context.Context, areaID string) (*Run, error) {
	a, err := s.areas.Get(ctx, areaID)
	if err != nil {
		return nil, err
	}

	g, err := a.Grid()
	if err != nil {
		return nil, fmt.Errorf("regenerating grid: %w", err)
	}

	collected, err := s.snapshots.Count(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("counting snapshots: %w", err)
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, ErrRunActive
	}
	ar := &activeRun{
		run:    newRun(areaID, a.TargetCount, collected),
		pause:  make(chan struct{}),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.active = ar
	s.mu.Unlock()

	// The target may already be met when resuming. Complete without
	// sampling and without passing through training status.
	if collected >= a.TargetCount {
		go s.completeImmediately(ar, a)
		return ar.run, nil
	}

	if err := s.areas.UpdateStatus(ctx, areaID, area.StatusTraining); err != nil {
		s.release(ar)
		close(ar.done)
		return nil, fmt.Errorf("marking area training: %w", err)
	}

	s.logger.Info().
		Str("area_id", areaID).
		Int("collected", collected).
		Int("target", a.TargetCount).
		Dur("interval", a.Interval()).
		Msg("training run started")

	go s.loop(ar, a, g)
	return ar.run, nil
}

// Pause stops the run's timer and frees the slot. An in-flight fire
// completes and persists first. The events channel closes without a
// terminal event and the area stays in training status, which is what
// the next boot's auto-resume looks for. Pause returns once the run has
// fully stopped.
func (s *Scheduler) Pause(areaID string) error {
	return s.stop(areaID, true)
}

// Cancel stops the run, marks the area paused, and delivers a cancelled
// terminal event. Cancel returns once the run has fully stopped.
func (s *Scheduler) Cancel(areaID string) error {
	return s.stop(areaID, false)
}

// Active reports the current run, if any.
func (s *Scheduler) Active() (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return RunStatus{}, false
	}
	return s.active.run.Status(), true
}

func (s *Scheduler) stop(areaID string, pause bool) error {
	s.mu.Lock()
	ar := s.active
	if ar == nil || ar.run.AreaID != areaID || ar.stopping {
		s.mu.Unlock()
		return ErrNoActiveRun
	}
	ar.stopping = true
	if pause {
		close(ar.pause)
	} else {
		close(ar.cancel)
	}
	s.mu.Unlock()

	<-ar.done
	return nil
}

func (s *Scheduler) release(ar *activeRun) {
	s.mu.Lock()
	if s.active == ar {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *Scheduler) completeImmediately(ar *activeRun, a *area.Area) {
	defer close(ar.done)
	defer s.release(ar)
	defer close(ar.run.events)

	s.finishCompleted(ar.run, a)
}

func (s *Scheduler) loop(ar *activeRun, a *area.Area, g *grid.Grid) {
	defer close(ar.done)
	defer s.release(ar)
	defer close(ar.run.events)

	ctx := context.Background()
	run := ar.run
	interval := a.Interval()

	for {
		// A stop requested between fires takes effect before sampling.
		select {
		case <-ar.pause:
			s.logPaused(run)
			return
		case <-ar.cancel:
			s.finishCancelled(run, a)
			return
		default:
		}

		fireStart := time.Now()
		snap, err := s.collectOnce(ctx, run, a, g)
		s.metrics.RecordFire(ctx, a.ID, time.Since(fireStart), err)
		if err != nil {
			s.finishFailed(run, a, err)
			return
		}

		collected := snap.Seq + 1
		run.setCollected(collected)

		summary := *snap
		summary.Samples = nil
		run.sendProgress(Event{
			Kind:      EventProgress,
			AreaID:    a.ID,
			Collected: collected,
			Target:    run.Target,
			Summary:   &summary,
		})

		s.logger.Debug().
			Str("area_id", a.ID).
			Int("seq", snap.Seq).
			Int("collected", collected).
			Int("target", run.Target).
			Msg("snapshot collected")

		if collected >= run.Target {
			s.finishCompleted(run, a)
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ar.pause:
			timer.Stop()
			s.logPaused(run)
			return
		case <-ar.cancel:
			timer.Stop()
			s.finishCancelled(run, a)
			return
		case <-timer.C:
		}
	}
}

// collectOnce samples every route and appends the resulting snapshot,
// retrying transient store failures with exponential backoff. Each retry
// re-checks the stored count first: if it moved past the run's count,
// the previous attempt landed and only its acknowledgement was lost, so
// the snapshot must not be appended again.
func (s *Scheduler) collectOnce(ctx context.Context, run *Run, a *area.Area, g *grid.Grid) (*snapshot.Snapshot, error) {
	snap, err := s.sampler.Sample(ctx, a.ID, g.Routes)
	if err != nil {
		return nil, err
	}

	before := run.Collected()

	operation := func() error {
		count, err := s.snapshots.Count(ctx, a.ID)
		if err != nil {
			return err
		}
		if count > before {
			snap.Seq = count - 1
			return nil
		}
		return s.snapshots.Append(ctx, snap)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.appendRetryInterval
	bo.MaxElapsedTime = 0 // retries bounded by WithMaxRetries, not elapsed time

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, s.appendMaxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("appending snapshot: %w", err)
	}
	return snap, nil
}

func (s *Scheduler) finishCompleted(run *Run, a *area.Area) {
	if err := s.areas.UpdateStatus(context.Background(), a.ID, area.StatusCompleted); err != nil {
		// The next Start recomputes from the store and completes again.
		s.logger.Error().Err(err).Str("area_id", a.ID).Msg("failed to mark area completed")
	}
	s.metrics.RecordRunEnd(context.Background(), a.ID, OutcomeCompleted)

	run.sendTerminal(Event{
		Kind:      EventTerminal,
		AreaID:    a.ID,
		Collected: run.Collected(),
		Target:    run.Target,
		Outcome:   OutcomeCompleted,
	})

	s.logger.Info().
		Str("area_id", a.ID).
		Int("collected", run.Collected()).
		Msg("training run completed")
}

func (s *Scheduler) finishCancelled(run *Run, a *area.Area) {
	if err := s.areas.UpdateStatus(context.Background(), a.ID, area.StatusPaused); err != nil {
		s.logger.Error().Err(err).Str("area_id", a.ID).Msg("failed to mark area paused")
	}
	s.metrics.RecordRunEnd(context.Background(), a.ID, OutcomeCancelled)

	run.sendTerminal(Event{
		Kind:      EventTerminal,
		AreaID:    a.ID,
		Collected: run.Collected(),
		Target:    run.Target,
		Outcome:   OutcomeCancelled,
	})

	s.logger.Info().
		Str("area_id", a.ID).
		Int("collected", run.Collected()).
		Msg("training run cancelled")
}

func (s *Scheduler) finishFailed(run *Run, a *area.Area, cause error) {
	if err := s.areas.UpdateStatus(context.Background(), a.ID, area.StatusFailed); err != nil {
		s.logger.Error().Err(err).Str("area_id", a.ID).Msg("failed to mark area failed")
	}
	s.metrics.RecordRunEnd(context.Background(), a.ID, OutcomeFailed)

	run.sendTerminal(Event{
		Kind:      EventTerminal,
		AreaID:    a.ID,
		Collected: run.Collected(),
		Target:    run.Target,
		Outcome:   OutcomeFailed,
		Reason:    cause.Error(),
	})

	s.logger.Error().
		Err(cause).
		Str("area_id", a.ID).
		Msg("training run failed")
}

func (s *Scheduler) logPaused(run *Run) {
	s.logger.Info().
		Str("area_id", run.AreaID).
		Int("collected", run.Collected()).
		Msg("training run paused")
}
