package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepository is a SQLite implementation of Repository backed by
// database/sql. It serves single-node collector deployments where running
// Postgres is not worth the operational overhead. Timestamps are stored
// as integer unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite snapshot repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append persists a snapshot and its route samples in a single transaction.
func (r *SQLiteRepository) Append(ctx context.Context, snap *Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO snapshots (
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		) VALUES (
			?,
			(SELECT COUNT(*) FROM snapshots WHERE area_id = ?),
			?, ?, ?, ?, ?, ?, ?
		)
		RETURNING seq
	`

	var seq int
	err = tx.QueryRowContext(ctx, query,
		snap.AreaID,
		snap.AreaID,
		snap.CapturedAt.UTC().UnixMilli(),
		snap.AvgSpeedKMH,
		snap.MinSpeedKMH,
		snap.MaxSpeedKMH,
		snap.SampleCount,
		snap.RouteCount,
		snap.Available,
	).Scan(&seq)
	if err != nil {
		return err
	}

	if len(snap.Samples) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO route_samples (
				area_id, seq, route_id,
				speed_kmh, travel_time_seconds, distance_meters, available
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range snap.Samples {
			_, err := stmt.ExecContext(ctx,
				snap.AreaID,
				seq,
				s.RouteID,
				s.SpeedKMH,
				s.TravelTime.Seconds(),
				s.DistanceMeters,
				s.Available,
			)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	snap.Seq = seq
	return nil
}

// Count returns the number of snapshots recorded for an area.
func (r *SQLiteRepository) Count(ctx context.Context, areaID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE area_id = ?`, areaID,
	).Scan(&count)
	return count, err
}

// Latest returns the most recent snapshot for an area.
func (r *SQLiteRepository) Latest(ctx context.Context, areaID string) (*Snapshot, error) {
	query := `
		SELECT
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		FROM snapshots
		WHERE area_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`

	return r.scanSnapshot(ctx, query, areaID)
}

// Get returns a single snapshot including its route samples.
func (r *SQLiteRepository) Get(ctx context.Context, areaID string, seq int) (*Snapshot, error) {
	query := `
		SELECT
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		FROM snapshots
		WHERE area_id = ? AND seq = ?
	`

	snap, err := r.scanSnapshot(ctx, query, areaID, seq)
	if err != nil {
		return nil, err
	}

	samplesQuery := `
		SELECT route_id, speed_kmh, travel_time_seconds, distance_meters, available
		FROM route_samples
		WHERE area_id = ? AND seq = ?
		ORDER BY route_id
	`

	rows, err := r.db.QueryContext(ctx, samplesQuery, areaID, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sample  RouteSample
			seconds float64
		)
		err := rows.Scan(
			&sample.RouteID,
			&sample.SpeedKMH,
			&seconds,
			&sample.DistanceMeters,
			&sample.Available,
		)
		if err != nil {
			return nil, err
		}
		sample.TravelTime = time.Duration(seconds * float64(time.Second))
		snap.Samples = append(snap.Samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// scanSnapshot scans a snapshot summary row from a query result.
func (r *SQLiteRepository) scanSnapshot(ctx context.Context, query string, args ...interface{}) (*Snapshot, error) {
	var (
		snap       Snapshot
		capturedMs int64
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&snap.AreaID,
		&snap.Seq,
		&capturedMs,
		&snap.AvgSpeedKMH,
		&snap.MinSpeedKMH,
		&snap.MaxSpeedKMH,
		&snap.SampleCount,
		&snap.RouteCount,
		&snap.Available,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	snap.CapturedAt = time.UnixMilli(capturedMs).UTC()
	return &snap, nil
}

// List returns snapshots in descending sequence order.
func (r *SQLiteRepository) List(ctx context.Context, areaID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `
		SELECT
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		FROM snapshots
		WHERE area_id = ? AND (? < 0 OR seq < ?)
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, areaID, opts.Before, opts.Before, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var (
			snap       Snapshot
			capturedMs int64
		)
		err := rows.Scan(
			&snap.AreaID,
			&snap.Seq,
			&capturedMs,
			&snap.AvgSpeedKMH,
			&snap.MinSpeedKMH,
			&snap.MaxSpeedKMH,
			&snap.SampleCount,
			&snap.RouteCount,
			&snap.Available,
		)
		if err != nil {
			return nil, err
		}
		snap.CapturedAt = time.UnixMilli(capturedMs).UTC()
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items:      snapshots,
		NextBefore: -1,
	}

	if len(snapshots) > limit {
		result.Items = snapshots[:limit]
		result.NextBefore = snapshots[limit-1].Seq
	}

	return result, nil
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)
