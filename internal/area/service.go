package area

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/snapshot"
	"github.com/trafficlens/trafficlens/pkg/polyline"
)

// Validation constants.
const (
	MaxNameLength = 80
	MinResolution = 2
	MaxResolution = 30
)

// Service provides area operations.
type Service struct {
	repo      Repository
	snapshots snapshot.Repository
}

// NewService creates a new area service.
func NewService(repo Repository, snapshots snapshot.Repository) *Service {
	return &Service{repo: repo, snapshots: snapshots}
}

// Create registers a new area, generating and persisting its sampling grid.
func (s *Service) Create(ctx context.Context, input *models.AreaCreateRequest) (*models.Area, error) {
	// Validate input
	if fieldErrors := s.validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	bounds := grid.Bounds{
		South: input.Bounds.South,
		West:  input.Bounds.West,
		North: input.Bounds.North,
		East:  input.Bounds.East,
	}
	g, err := grid.Generate(bounds, input.Resolution)
	if err != nil {
		return nil, fmt.Errorf("generating grid: %w", err)
	}

	coords := g.Coordinates()
	points := make([]polyline.Coordinate, len(coords))
	for i, c := range coords {
		points[i] = polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
	}

	now := time.Now().UTC()
	areaID := "area_" + uuid.New().String()[:22]

	a := &Area{
		ID:              areaID,
		Name:            input.Name,
		Bounds:          bounds,
		Resolution:      input.Resolution,
		PointCount:      len(g.Points),
		RouteCount:      len(g.Routes),
		GridPolyline:    polyline.Encode(points),
		NetworkRef:      input.NetworkRef,
		Status:          StatusCreated,
		DurationDays:    input.DurationDays,
		IntervalMinutes: input.IntervalMinutes,
		TargetCount:     ComputeTargetCount(input.DurationDays, input.IntervalMinutes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	result := s.toAPIArea(a)
	result.GridPolyline = a.GridPolyline
	return &result, nil
}

// Get retrieves an area by ID, including its encoded grid.
func (s *Service) Get(ctx context.Context, areaID string) (*models.Area, error) {
	a, err := s.repo.Get(ctx, areaID)
	if err != nil {
		return nil, err
	}

	result := s.toAPIArea(a)
	result.GridPolyline = a.GridPolyline
	return &result, nil
}

// List retrieves areas, newest first. The grid polyline is omitted from
// listings; fetch a single area to get it.
func (s *Service) List(ctx context.Context, limit int, cursor, status string) (*models.PagedAreas, error) {
	if status != "" && !Status(status).IsValid() {
		return nil, &ValidationError{Errors: []models.FieldError{
			{Field: "status", Message: "must be one of created, training, paused, completed, failed"},
		}}
	}

	result, err := s.repo.List(ctx, ListOptions{
		Limit:  limit,
		Cursor: cursor,
		Status: Status(status),
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.Area, 0, len(result.Items))
	for _, a := range result.Items {
		items = append(items, s.toAPIArea(a))
	}

	var nextCursor *string
	if result.NextCursor != "" {
		nextCursor = &result.NextCursor
	}

	return &models.PagedAreas{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Stats reports an area's collection progress.
func (s *Service) Stats(ctx context.Context, areaID string) (*models.AreaStats, error) {
	a, err := s.repo.Get(ctx, areaID)
	if err != nil {
		return nil, err
	}

	collected, err := s.snapshots.Count(ctx, areaID)
	if err != nil {
		return nil, err
	}

	stats := &models.AreaStats{
		AreaID:    a.ID,
		Status:    models.AreaStatus(a.Status),
		Collected: collected,
		Target:    a.TargetCount,
		Remaining: max(a.TargetCount-collected, 0),
	}

	latest, err := s.snapshots.Latest(ctx, areaID)
	switch {
	case err == nil:
		snap := s.toAPISnapshot(latest)
		stats.Latest = &snap
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		// No snapshots yet.
	default:
		return nil, err
	}

	return stats, nil
}

// Snapshots retrieves a page of an area's snapshots, newest first, without
// per-route samples.
func (s *Service) Snapshots(ctx context.Context, areaID string, limit int, cursor string) (*models.PagedSnapshots, error) {
	if _, err := s.repo.Get(ctx, areaID); err != nil {
		return nil, err
	}

	before := -1
	if cursor != "" {
		v, err := strconv.Atoi(cursor)
		if err != nil || v < 0 {
			return nil, &ValidationError{Errors: []models.FieldError{
				{Field: "cursor", Message: "is not a valid snapshot cursor"},
			}}
		}
		before = v
	}

	result, err := s.snapshots.List(ctx, areaID, snapshot.ListOptions{
		Limit:  limit,
		Before: before,
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.Snapshot, 0, len(result.Items))
	for _, snap := range result.Items {
		items = append(items, s.toAPISnapshot(snap))
	}

	var nextCursor *string
	if result.NextBefore >= 0 {
		c := strconv.Itoa(result.NextBefore)
		nextCursor = &c
	}

	return &models.PagedSnapshots{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Snapshot retrieves a single snapshot with its per-route samples.
func (s *Service) Snapshot(ctx context.Context, areaID string, seq int) (*models.Snapshot, error) {
	if _, err := s.repo.Get(ctx, areaID); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.Get(ctx, areaID, seq)
	if err != nil {
		return nil, err
	}

	result := s.toAPISnapshot(snap)
	return &result, nil
}

// validateCreateInput validates the create area input.
func (s *Service) validateCreateInput(input *models.AreaCreateRequest) []models.FieldError {
	var errs []models.FieldError

	// Validate name
	if input.Name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(input.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 80 characters"})
	}

	// Validate bounds
	errs = append(errs, s.validateBounds(&input.Bounds)...)

	// Validate resolution
	if input.Resolution < MinResolution || input.Resolution > MaxResolution {
		errs = append(errs, models.FieldError{Field: "resolution", Message: "must be between 2 and 30"})
	}

	// Validate training parameters
	durationOK := input.DurationDays >= 1
	intervalOK := input.IntervalMinutes >= 1
	if !durationOK {
		errs = append(errs, models.FieldError{Field: "durationDays", Message: "must be at least 1"})
	}
	if !intervalOK {
		errs = append(errs, models.FieldError{Field: "intervalMinutes", Message: "must be at least 1"})
	}
	if durationOK && intervalOK && ComputeTargetCount(input.DurationDays, input.IntervalMinutes) < 1 {
		errs = append(errs, models.FieldError{Field: "intervalMinutes", Message: "leaves no sampling slots within the training window"})
	}

	// Validate network reference (optional)
	if input.NetworkRef != nil && *input.NetworkRef == "" {
		errs = append(errs, models.FieldError{Field: "networkRef", Message: "cannot be empty"})
	}

	return errs
}

// validateBounds validates the area bounding box.
func (s *Service) validateBounds(b *models.BoundingBox) []models.FieldError {
	var errs []models.FieldError

	if b.South < -90 || b.South > 90 {
		errs = append(errs, models.FieldError{Field: "bounds.south", Message: "must be between -90 and 90"})
	}
	if b.North < -90 || b.North > 90 {
		errs = append(errs, models.FieldError{Field: "bounds.north", Message: "must be between -90 and 90"})
	}
	if b.West < -180 || b.West > 180 {
		errs = append(errs, models.FieldError{Field: "bounds.west", Message: "must be between -180 and 180"})
	}
	if b.East < -180 || b.East > 180 {
		errs = append(errs, models.FieldError{Field: "bounds.east", Message: "must be between -180 and 180"})
	}
	if len(errs) > 0 {
		return errs
	}

	if b.North <= b.South {
		errs = append(errs, models.FieldError{Field: "bounds.north", Message: "must be greater than bounds.south"})
	}
	if b.East <= b.West {
		errs = append(errs, models.FieldError{Field: "bounds.east", Message: "must be greater than bounds.west"})
	}

	return errs
}

// ComputeTargetCount derives the number of snapshots a full training
// window holds: floor(days * 24h * 60m / interval).
func ComputeTargetCount(durationDays, intervalMinutes int) int {
	return durationDays * 24 * 60 / intervalMinutes
}

// toAPIArea converts a domain Area to an API Area. The grid polyline is
// left empty; single-area reads attach it.
func (s *Service) toAPIArea(a *Area) models.Area {
	return models.Area{
		ID:   a.ID,
		Name: a.Name,
		Bounds: models.BoundingBox{
			South: a.Bounds.South,
			West:  a.Bounds.West,
			North: a.Bounds.North,
			East:  a.Bounds.East,
		},
		Resolution:      a.Resolution,
		PointCount:      a.PointCount,
		RouteCount:      a.RouteCount,
		NetworkRef:      a.NetworkRef,
		Status:          models.AreaStatus(a.Status),
		DurationDays:    a.DurationDays,
		IntervalMinutes: a.IntervalMinutes,
		TargetCount:     a.TargetCount,
		CreatedAt:       models.Timestamp(a.CreatedAt),
		UpdatedAt:       models.Timestamp(a.UpdatedAt),
	}
}

// toAPISnapshot converts a domain Snapshot to an API Snapshot. Samples are
// carried over only when the repository loaded them.
func (s *Service) toAPISnapshot(snap *snapshot.Snapshot) models.Snapshot {
	result := models.Snapshot{
		AreaID:      snap.AreaID,
		Seq:         snap.Seq,
		CapturedAt:  models.Timestamp(snap.CapturedAt),
		AvgSpeedKMH: snap.AvgSpeedKMH,
		MinSpeedKMH: snap.MinSpeedKMH,
		MaxSpeedKMH: snap.MaxSpeedKMH,
		SampleCount: snap.SampleCount,
		RouteCount:  snap.RouteCount,
		Available:   snap.Available,
	}
	if len(snap.Samples) > 0 {
		result.Samples = make([]models.RouteSample, 0, len(snap.Samples))
		for _, sample := range snap.Samples {
			result.Samples = append(result.Samples, models.RouteSample{
				RouteID:           sample.RouteID,
				SpeedKMH:          sample.SpeedKMH,
				TravelTimeSeconds: sample.TravelTime.Seconds(),
				DistanceMeters:    sample.DistanceMeters,
				Available:         sample.Available,
			})
		}
	}
	return result
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
