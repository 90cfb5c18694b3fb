// Package area manages monitored areas: bounded geographic regions whose
// traffic state is sampled over long-running collection runs.
package area

import (
	"errors"
	"time"

	"github.com/trafficlens/trafficlens/internal/grid"
)

// Repository errors.
var (
	ErrAreaNotFound  = errors.New("area not found")
	ErrDuplicateName = errors.New("area name already in use")
	ErrInvalidCursor = errors.New("invalid list cursor")
)

// Status represents an area's position in its collection lifecycle.
type Status string

const (
	// StatusCreated means the area exists but no collection has started.
	StatusCreated Status = "created"

	// StatusTraining means a collection run is working toward the area's
	// target count. The status survives pauses and process restarts; it
	// is what the collector looks for when auto-resuming.
	StatusTraining Status = "training"

	// StatusPaused means collection was cancelled before reaching the
	// target. A fresh start resumes from the persisted snapshot count.
	StatusPaused Status = "paused"

	// StatusCompleted means the target collection count was reached.
	StatusCompleted Status = "completed"

	// StatusFailed means the last run aborted on a fatal error. The area
	// stays resumable once the underlying cause is fixed.
	StatusFailed Status = "failed"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusTraining, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Area is a monitored geographic region and its collection configuration.
type Area struct {
	// ID is the unique identifier, stable for the area's lifetime.
	ID string

	// Name is a human-readable label, unique across areas.
	Name string

	// Bounds and Resolution define the sampling grid. Both are fixed at
	// creation; a different resolution means a different area.
	Bounds     grid.Bounds
	Resolution int

	// PointCount and RouteCount are derived from Resolution once and
	// stored so listings never regenerate the grid.
	PointCount int
	RouteCount int

	// GridPolyline is the encoded point lattice, row-major from the
	// southwest corner. The operative grid is regenerated from Bounds
	// and Resolution; the polyline is the durable, driver-agnostic record.
	GridPolyline string

	// NetworkRef optionally links the area to a network build artifact.
	NetworkRef *string

	Status Status

	// DurationDays and IntervalMinutes are the training parameters.
	// TargetCount is derived once at creation:
	// floor(DurationDays * 24 * 60 / IntervalMinutes).
	DurationDays    int
	IntervalMinutes int
	TargetCount     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the sampling interval as a duration.
func (a *Area) Interval() time.Duration {
	return time.Duration(a.IntervalMinutes) * time.Minute
}

// Grid regenerates the area's sampling grid. Generation is deterministic,
// so the result is identical on every call for the same area.
func (a *Area) Grid() (*grid.Grid, error) {
	return grid.Generate(a.Bounds, a.Resolution)
}
