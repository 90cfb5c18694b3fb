package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/snapshot"
)

func newDispatchHandler() (*PubSubHandler, *area.InMemoryRepository) {
	areas := area.NewInMemoryRepository()
	sched := NewScheduler(SchedulerConfig{
		Areas:     areas,
		Snapshots: snapshot.NewInMemoryRepository(),
		Sampler:   snapshot.NewSampler(snapshot.SamplerConfig{Logger: zerolog.Nop()}),
		Logger:    zerolog.Nop(),
	})

	h := &PubSubHandler{scheduler: sched, logger: zerolog.Nop()}
	return h, areas
}

func TestPubSubHandler_Dispatch_InvalidCommands(t *testing.T) {
	h, _ := newDispatchHandler()
	ctx := context.Background()

	err := h.dispatch(ctx, CommandMessage{Command: CommandStartTraining})
	assert.ErrorIs(t, err, errBadCommand)

	err = h.dispatch(ctx, CommandMessage{Command: "refresh_all", AreaID: "area_x"})
	assert.ErrorIs(t, err, errBadCommand)
}

func TestPubSubHandler_Dispatch_StateConflicts(t *testing.T) {
	h, _ := newDispatchHandler()
	ctx := context.Background()

	err := h.dispatch(ctx, CommandMessage{Command: CommandStartTraining, AreaID: "area_missing"})
	assert.ErrorIs(t, err, area.ErrAreaNotFound)
	assert.True(t, isStateConflict(err))

	err = h.dispatch(ctx, CommandMessage{Command: CommandPauseTraining, AreaID: "area_missing"})
	assert.ErrorIs(t, err, ErrNoActiveRun)
	assert.True(t, isStateConflict(err))

	err = h.dispatch(ctx, CommandMessage{Command: CommandCancelTraining, AreaID: "area_missing"})
	assert.ErrorIs(t, err, ErrNoActiveRun)
	assert.True(t, isStateConflict(err))
}

func TestPubSubHandler_Dispatch_StartTraining(t *testing.T) {
	h, areas := newDispatchHandler()
	ctx := context.Background()

	// A zero target completes without sampling, so the dispatch path can
	// run end to end without an estimator.
	now := time.Now().UTC()
	require.NoError(t, areas.Create(ctx, &area.Area{
		ID:              "area_cmd",
		Name:            "area_cmd",
		Bounds:          grid.Bounds{South: 52.0, West: 4.0, North: 52.02, East: 4.02},
		Resolution:      2,
		Status:          area.StatusCreated,
		DurationDays:    1,
		IntervalMinutes: 60,
		TargetCount:     0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	err := h.dispatch(ctx, CommandMessage{Command: CommandStartTraining, AreaID: "area_cmd"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := h.scheduler.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)

	a, err := areas.Get(ctx, "area_cmd")
	require.NoError(t, err)
	assert.Equal(t, area.StatusCompleted, a.Status)
}

func TestIsStateConflict(t *testing.T) {
	assert.True(t, isStateConflict(ErrRunActive))
	assert.True(t, isStateConflict(ErrNoActiveRun))
	assert.True(t, isStateConflict(area.ErrAreaNotFound))
	assert.False(t, isStateConflict(errors.New("store write timed out")))
	assert.False(t, isStateConflict(context.DeadlineExceeded))
}
