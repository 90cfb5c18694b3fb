// Package snapshot captures and persists timestamped traffic samples for a
// monitored area's route grid.
package snapshot

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// RouteSample is the sampled traffic state of a single grid route.
type RouteSample struct {
	RouteID        string
	SpeedKMH       float64
	TravelTime     time.Duration
	DistanceMeters float64
	Available      bool
}

// Snapshot is one timestamped sampling of every route in an area's grid.
// Snapshots are immutable once appended. Seq is assigned by the repository
// and is zero based, strictly increasing, and gap free within an area.
type Snapshot struct {
	AreaID      string
	Seq         int
	CapturedAt  time.Time
	Samples     []RouteSample
	AvgSpeedKMH float64
	MinSpeedKMH float64
	MaxSpeedKMH float64
	SampleCount int
	RouteCount  int
	Available   bool
}

// newSnapshot assembles a snapshot from per-route samples, computing the
// aggregate over the available ones. A snapshot with zero available routes
// is still valid; its aggregate is marked unavailable.
func newSnapshot(areaID string, capturedAt time.Time, samples []RouteSample) *Snapshot {
	snap := &Snapshot{
		AreaID:     areaID,
		CapturedAt: capturedAt,
		Samples:    samples,
		RouteCount: len(samples),
	}

	var sum float64
	for _, s := range samples {
		if !s.Available {
			continue
		}
		if snap.SampleCount == 0 || s.SpeedKMH < snap.MinSpeedKMH {
			snap.MinSpeedKMH = s.SpeedKMH
		}
		if snap.SampleCount == 0 || s.SpeedKMH > snap.MaxSpeedKMH {
			snap.MaxSpeedKMH = s.SpeedKMH
		}
		sum += s.SpeedKMH
		snap.SampleCount++
	}

	if snap.SampleCount > 0 {
		snap.AvgSpeedKMH = sum / float64(snap.SampleCount)
		snap.Available = true
	}

	return snap
}
