package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL snapshot repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Append persists a snapshot and its route samples in a single transaction.
// The sequence index is assigned inside the transaction, so sequences stay
// gap free across process restarts.
func (r *PostgresRepository) Append(ctx context.Context, snap *Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO snapshots (
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		) VALUES (
			$1,
			(SELECT COUNT(*) FROM snapshots WHERE area_id = $1),
			$2, $3, $4, $5, $6, $7, $8
		)
		RETURNING seq
	`

	var seq int
	err = tx.QueryRow(ctx, query,
		snap.AreaID,
		snap.CapturedAt,
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
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"route_samples"},
			[]string{"area_id", "seq", "route_id", "speed_kmh", "travel_time_seconds", "distance_meters", "available"},
			pgx.CopyFromSlice(len(snap.Samples), func(i int) ([]interface{}, error) {
				s := snap.Samples[i]
				return []interface{}{
					snap.AreaID,
					seq,
					s.RouteID,
					s.SpeedKMH,
					s.TravelTime.Seconds(),
					s.DistanceMeters,
					s.Available,
				}, nil
			}),
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	snap.Seq = seq
	return nil
}

// Count returns the number of snapshots recorded for an area.
func (r *PostgresRepository) Count(ctx context.Context, areaID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE area_id = $1`, areaID,
	).Scan(&count)
	return count, err
}

// Latest returns the most recent snapshot for an area.
func (r *PostgresRepository) Latest(ctx context.Context, areaID string) (*Snapshot, error) {
	query := `
		SELECT
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		FROM snapshots
		WHERE area_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	return r.scanSnapshot(ctx, query, areaID)
}

// Get returns a single snapshot including its route samples.
func (r *PostgresRepository) Get(ctx context.Context, areaID string, seq int) (*Snapshot, error) {
	query := `
		SELECT
			area_id, seq, captured_at,
			avg_speed_kmh, min_speed_kmh, max_speed_kmh,
			sample_count, route_count, available
		FROM snapshots
		WHERE area_id = $1 AND seq = $2
	`

	snap, err := r.scanSnapshot(ctx, query, areaID, seq)
	if err != nil {
		return nil, err
	}

	samplesQuery := `
		SELECT route_id, speed_kmh, travel_time_seconds, distance_meters, available
		FROM route_samples
		WHERE area_id = $1 AND seq = $2
		ORDER BY route_id
	`

	rows, err := r.pool.Query(ctx, samplesQuery, areaID, seq)
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
func (r *PostgresRepository) scanSnapshot(ctx context.Context, query string, args ...interface{}) (*Snapshot, error) {
	var snap Snapshot

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&snap.AreaID,
		&snap.Seq,
		&snap.CapturedAt,
		&snap.AvgSpeedKMH,
		&snap.MinSpeedKMH,
		&snap.MaxSpeedKMH,
		&snap.SampleCount,
		&snap.RouteCount,
		&snap.Available,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	return &snap, nil
}

// List returns snapshots in descending sequence order.
func (r *PostgresRepository) List(ctx context.Context, areaID string, opts ListOptions) (*ListResult, error) {
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
		WHERE area_id = $1 AND ($2 < 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, areaID, opts.Before, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var snap Snapshot
		err := rows.Scan(
			&snap.AreaID,
			&snap.Seq,
			&snap.CapturedAt,
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
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items:      snapshots,
		NextBefore: -1,
	}

	// If we got more results than the limit, there are more pages
	if len(snapshots) > limit {
		result.Items = snapshots[:limit]
		result.NextBefore = snapshots[limit-1].Seq
	}

	return result, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
