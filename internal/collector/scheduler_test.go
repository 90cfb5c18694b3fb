package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/collector"
	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/snapshot"
	"github.com/trafficlens/trafficlens/internal/traffic"
)

// stubEstimator answers every route with a fixed estimate, or with a
// configured error.
type stubEstimator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *stubEstimator) Estimate(_ context.Context, _, _ grid.Coordinate) (traffic.Estimate, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.err != nil {
		return traffic.Estimate{}, e.err
	}
	return traffic.Estimate{
		SpeedKMH:       40,
		TravelTime:     90 * time.Second,
		DistanceMeters: 1200,
		Available:      true,
	}, nil
}

func (e *stubEstimator) Name() string { return "stub" }

func (e *stubEstimator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// flakyStore wraps a snapshot repository and fails a configured number of
// Append calls. With persist set, a failed Append still writes the
// snapshot before reporting the error, imitating a write whose
// acknowledgement was lost.
type flakyStore struct {
	snapshot.Repository

	mu          sync.Mutex
	failAppends int
	persist     bool
	appendCalls int
}

func (s *flakyStore) Append(ctx context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendCalls++
	if s.failAppends > 0 {
		s.failAppends--
		if s.persist {
			if err := s.Repository.Append(ctx, snap); err != nil {
				return err
			}
		}
		return errors.New("store write timed out")
	}
	return s.Repository.Append(ctx, snap)
}

func (s *flakyStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendCalls
}

func newTestScheduler(estimator traffic.Estimator, snapshots snapshot.Repository) (*collector.Scheduler, *area.InMemoryRepository) {
	areas := area.NewInMemoryRepository()

	sampler := snapshot.NewSampler(snapshot.SamplerConfig{
		Estimator:   estimator,
		Concurrency: 2,
		Timeout:     time.Second,
		Logger:      zerolog.Nop(),
	})

	sched := collector.NewScheduler(collector.SchedulerConfig{
		Areas:               areas,
		Snapshots:           snapshots,
		Sampler:             sampler,
		Logger:              zerolog.Nop(),
		AppendMaxRetries:    2,
		AppendRetryInterval: time.Millisecond,
	})
	return sched, areas
}

// seedArea inserts an area whose 2x2 grid yields four routes. The hour
// interval keeps multi-fire runs parked on their timer, so tests stop them
// with Pause or Cancel instead of waiting.
func seedArea(t *testing.T, areas *area.InMemoryRepository, id string, target int) *area.Area {
	t.Helper()

	now := time.Now().UTC()
	a := &area.Area{
		ID:              id,
		Name:            id,
		Bounds:          grid.Bounds{South: 52.0, West: 4.0, North: 52.02, East: 4.02},
		Resolution:      2,
		PointCount:      4,
		RouteCount:      4,
		Status:          area.StatusCreated,
		DurationDays:    1,
		IntervalMinutes: 60,
		TargetCount:     target,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, areas.Create(context.Background(), a))
	return a
}

// drainEvents consumes run events until the channel closes.
func drainEvents(t *testing.T, run *collector.Run) []collector.Event {
	t.Helper()

	var events []collector.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for run events")
		}
	}
}

func requireStatus(t *testing.T, areas *area.InMemoryRepository, areaID string, want area.Status) {
	t.Helper()

	a, err := areas.Get(context.Background(), areaID)
	require.NoError(t, err)
	assert.Equal(t, want, a.Status)
}

func TestScheduler_Start_RunsToCompletion(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_run", 1)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 2)

	progress := events[0]
	assert.Equal(t, collector.EventProgress, progress.Kind)
	assert.Equal(t, 1, progress.Collected)
	assert.Equal(t, 1, progress.Target)
	require.NotNil(t, progress.Summary)
	assert.Nil(t, progress.Summary.Samples)
	assert.Equal(t, 4, progress.Summary.RouteCount)
	assert.Equal(t, 4, progress.Summary.SampleCount)
	assert.InDelta(t, 40.0, progress.Summary.AvgSpeedKMH, 0.001)

	terminal := events[1]
	assert.Equal(t, collector.EventTerminal, terminal.Kind)
	assert.Equal(t, collector.OutcomeCompleted, terminal.Outcome)
	assert.Equal(t, 1, terminal.Collected)

	requireStatus(t, areas, a.ID, area.StatusCompleted)

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := snapshots.Get(context.Background(), a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, stored.Samples, 4)

	assert.Eventually(t, func() bool {
		_, ok := sched.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_Start_ResumesFromStoredCount(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_resume", 3)

	for i := 0; i < 2; i++ {
		err := snapshots.Append(context.Background(), &snapshot.Snapshot{
			AreaID:     a.ID,
			CapturedAt: time.Now().UTC(),
			RouteCount: 4,
		})
		require.NoError(t, err)
	}

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Status().Collected)

	events := drainEvents(t, run)
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].Collected)
	assert.Equal(t, collector.OutcomeCompleted, events[1].Outcome)

	// One fire covered the remaining slot.
	assert.Equal(t, 4, estimator.callCount())

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	requireStatus(t, areas, a.ID, area.StatusCompleted)
}

func TestScheduler_Start_CompletesImmediatelyWhenTargetMet(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_done", 2)

	for i := 0; i < 2; i++ {
		err := snapshots.Append(context.Background(), &snapshot.Snapshot{
			AreaID:     a.ID,
			CapturedAt: time.Now().UTC(),
			RouteCount: 4,
		})
		require.NoError(t, err)
	}
	require.NoError(t, areas.UpdateStatus(context.Background(), a.ID, area.StatusPaused))

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 1)
	assert.Equal(t, collector.EventTerminal, events[0].Kind)
	assert.Equal(t, collector.OutcomeCompleted, events[0].Outcome)
	assert.Equal(t, 2, events[0].Collected)

	// No sampling happened.
	assert.Equal(t, 0, estimator.callCount())

	requireStatus(t, areas, a.ID, area.StatusCompleted)
}

func TestScheduler_Start_SecondRunRejected(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_first", 3)
	b := seedArea(t, areas, "area_second", 3)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	ev := <-run.Events()
	require.Equal(t, collector.EventProgress, ev.Kind)

	_, err = sched.Start(context.Background(), b.ID)
	assert.ErrorIs(t, err, collector.ErrRunActive)

	_, err = sched.Start(context.Background(), a.ID)
	assert.ErrorIs(t, err, collector.ErrRunActive)

	require.NoError(t, sched.Cancel(a.ID))
	drainEvents(t, run)
}

func TestScheduler_Start_AreaNotFound(t *testing.T) {
	estimator := &stubEstimator{}
	sched, _ := newTestScheduler(estimator, snapshot.NewInMemoryRepository())

	_, err := sched.Start(context.Background(), "area_missing")
	assert.ErrorIs(t, err, area.ErrAreaNotFound)
}

func TestScheduler_Pause_KeepsTrainingStatus(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_pause", 3)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	ev := <-run.Events()
	require.Equal(t, collector.EventProgress, ev.Kind)
	require.Equal(t, 1, ev.Collected)

	require.NoError(t, sched.Pause(a.ID))

	// The channel closes without a terminal event.
	for ev := range run.Events() {
		assert.NotEqual(t, collector.EventTerminal, ev.Kind)
	}

	requireStatus(t, areas, a.ID, area.StatusTraining)

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, ok := sched.Active()
	assert.False(t, ok)
}

func TestScheduler_Pause_ThenResumeCompletes(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_cycle", 2)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	ev := <-run.Events()
	require.Equal(t, 1, ev.Collected)
	require.NoError(t, sched.Pause(a.ID))
	drainEvents(t, run)

	resumed, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Status().Collected)

	events := drainEvents(t, resumed)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Collected)
	assert.Equal(t, collector.OutcomeCompleted, events[1].Outcome)

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	requireStatus(t, areas, a.ID, area.StatusCompleted)
}

func TestScheduler_Cancel_MarksAreaPaused(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_cancel", 3)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	ev := <-run.Events()
	require.Equal(t, collector.EventProgress, ev.Kind)

	require.NoError(t, sched.Cancel(a.ID))

	events := drainEvents(t, run)
	require.Len(t, events, 1)
	assert.Equal(t, collector.EventTerminal, events[0].Kind)
	assert.Equal(t, collector.OutcomeCancelled, events[0].Outcome)
	assert.Equal(t, 1, events[0].Collected)

	requireStatus(t, areas, a.ID, area.StatusPaused)

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScheduler_StopWithoutMatchingRun(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)

	assert.ErrorIs(t, sched.Pause("area_missing"), collector.ErrNoActiveRun)
	assert.ErrorIs(t, sched.Cancel("area_missing"), collector.ErrNoActiveRun)

	a := seedArea(t, areas, "area_active", 3)
	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)
	<-run.Events()

	assert.ErrorIs(t, sched.Pause("area_other"), collector.ErrNoActiveRun)
	assert.ErrorIs(t, sched.Cancel("area_other"), collector.ErrNoActiveRun)

	require.NoError(t, sched.Cancel(a.ID))
	drainEvents(t, run)
}

func TestScheduler_FatalEstimatorFailsRun(t *testing.T) {
	estimator := &stubEstimator{err: traffic.ErrUnauthorized}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)
	a := seedArea(t, areas, "area_fatal", 1)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 1)
	assert.Equal(t, collector.EventTerminal, events[0].Kind)
	assert.Equal(t, collector.OutcomeFailed, events[0].Outcome)
	assert.Contains(t, events[0].Reason, "estimator failure")
	assert.Equal(t, 0, events[0].Collected)

	requireStatus(t, areas, a.ID, area.StatusFailed)

	count, err := snapshots.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestScheduler_RetriesTransientAppend(t *testing.T) {
	estimator := &stubEstimator{}
	store := &flakyStore{Repository: snapshot.NewInMemoryRepository(), failAppends: 1}
	sched, areas := newTestScheduler(estimator, store)
	a := seedArea(t, areas, "area_retry", 1)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 2)
	assert.Equal(t, collector.OutcomeCompleted, events[1].Outcome)

	// First attempt failed, second landed.
	assert.Equal(t, 2, store.appendCount())

	count, err := store.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScheduler_LostAckDoesNotDuplicate(t *testing.T) {
	estimator := &stubEstimator{}
	store := &flakyStore{
		Repository:  snapshot.NewInMemoryRepository(),
		failAppends: 1,
		persist:     true,
	}
	sched, areas := newTestScheduler(estimator, store)
	a := seedArea(t, areas, "area_lostack", 1)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Collected)
	assert.Equal(t, collector.OutcomeCompleted, events[1].Outcome)

	// The retry saw the count advance and adopted the stored snapshot
	// instead of appending again.
	assert.Equal(t, 1, store.appendCount())

	count, err := store.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, err := store.Latest(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, latest.Seq)
}

func TestScheduler_AppendRetriesExhaustedFailsRun(t *testing.T) {
	estimator := &stubEstimator{}
	store := &flakyStore{Repository: snapshot.NewInMemoryRepository(), failAppends: 10}
	sched, areas := newTestScheduler(estimator, store)
	a := seedArea(t, areas, "area_exhausted", 1)

	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	events := drainEvents(t, run)
	require.Len(t, events, 1)
	assert.Equal(t, collector.OutcomeFailed, events[0].Outcome)
	assert.Contains(t, events[0].Reason, "appending snapshot")

	// Initial attempt plus two retries.
	assert.Equal(t, 3, store.appendCount())

	requireStatus(t, areas, a.ID, area.StatusFailed)

	count, err := store.Count(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestScheduler_ActiveReportsRun(t *testing.T) {
	estimator := &stubEstimator{}
	snapshots := snapshot.NewInMemoryRepository()
	sched, areas := newTestScheduler(estimator, snapshots)

	_, ok := sched.Active()
	assert.False(t, ok)

	a := seedArea(t, areas, "area_status", 3)
	run, err := sched.Start(context.Background(), a.ID)
	require.NoError(t, err)

	ev := <-run.Events()
	require.Equal(t, 1, ev.Collected)

	status, ok := sched.Active()
	require.True(t, ok)
	assert.Equal(t, a.ID, status.AreaID)
	assert.Equal(t, 1, status.Collected)
	assert.Equal(t, 3, status.Target)
	assert.False(t, status.StartedAt.IsZero())

	require.NoError(t, sched.Cancel(a.ID))
	drainEvents(t, run)

	_, ok = sched.Active()
	assert.False(t, ok)
}
