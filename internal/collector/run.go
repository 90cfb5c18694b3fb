// Package collector drives long-running snapshot collection for areas:
// periodic sampling, persistence with retry, and run lifecycle control.
package collector

import (
	"sync/atomic"
	"time"

	"github.com/trafficlens/trafficlens/internal/snapshot"
)

// Outcome is the final disposition of a collection run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// EventKind distinguishes progress ticks from the terminal event.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventTerminal EventKind = "terminal"
)

// Event reports the state of a run after a fire or at termination.
type Event struct {
	Kind      EventKind
	AreaID    string
	Collected int
	Target    int

	// Summary carries the snapshot just persisted, without per-route
	// samples. Set on progress events.
	Summary *snapshot.Snapshot

	// Outcome and Reason are set on terminal events; Reason only for
	// failures.
	Outcome Outcome
	Reason  string
}

// RunStatus is a point-in-time view of the active run.
type RunStatus struct {
	AreaID    string
	Collected int
	Target    int
	StartedAt time.Time
}

// eventBuffer sizes the per-run event channel. Progress sends keep one
// slot free so the terminal event can always be enqueued without
// blocking the run loop on a slow consumer.
const eventBuffer = 16

// Run is a handle on one started collection run. A paused run closes its
// event channel without a terminal event; every other ending delivers
// exactly one terminal event before the close.
type Run struct {
	AreaID    string
	Target    int
	StartedAt time.Time

	collected atomic.Int64
	events    chan Event
}

func newRun(areaID string, target, collected int) *Run {
	r := &Run{
		AreaID:    areaID,
		Target:    target,
		StartedAt: time.Now().UTC(),
		events:    make(chan Event, eventBuffer),
	}
	r.collected.Store(int64(collected))
	return r
}

// Events returns the run's event stream. The channel is closed when the
// run stops for any reason.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Collected returns the number of snapshots persisted for the area so
// far, including those from earlier runs.
func (r *Run) Collected() int {
	return int(r.collected.Load())
}

// Status returns a point-in-time view of the run.
func (r *Run) Status() RunStatus {
	return RunStatus{
		AreaID:    r.AreaID,
		Collected: r.Collected(),
		Target:    r.Target,
		StartedAt: r.StartedAt,
	}
}

func (r *Run) setCollected(n int) {
	r.collected.Store(int64(n))
}

// sendProgress drops the event rather than block, and always leaves one
// buffer slot free for the terminal event.
func (r *Run) sendProgress(ev Event) {
	if len(r.events) >= cap(r.events)-1 {
		return
	}
	select {
	case r.events <- ev:
	default:
	}
}

// sendTerminal enqueues the terminal event. The spare buffer slot
// guarantees this never blocks.
func (r *Run) sendTerminal(ev Event) {
	r.events <- ev
}
