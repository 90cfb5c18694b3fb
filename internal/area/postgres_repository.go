package area

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a pgx-backed Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a Repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const areaColumns = `
	id, name, south, west, north, east,
	resolution, point_count, route_count, grid_polyline, network_ref,
	status, duration_days, interval_minutes, target_count,
	created_at, updated_at
`

func (r *PostgresRepository) Create(ctx context.Context, a *Area) error {
	query := `
		INSERT INTO areas (` + areaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Name,
		a.Bounds.South, a.Bounds.West, a.Bounds.North, a.Bounds.East,
		a.Resolution, a.PointCount, a.RouteCount, a.GridPolyline, a.NetworkRef,
		string(a.Status), a.DurationDays, a.IntervalMinutes, a.TargetCount,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting area: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas WHERE id = $1`

	a, err := scanArea(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("querying area: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = defaultListLimit
	}

	var (
		cursorAt time.Time
		cursorID string
	)
	hasCursor := opts.Cursor != ""
	if hasCursor {
		var err error
		cursorAt, cursorID, err = decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
	}

	// Fetch one extra row to learn whether another page exists.
	fetchLimit := limit + 1

	query := `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE ($1 = '' OR status = $1)
		  AND (NOT $2 OR (created_at, id) < ($3, $4))
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query, string(opts.Status), hasCursor, cursorAt, cursorID, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	areas := make([]*Area, 0, fetchLimit)
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area: %w", err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating areas: %w", err)
	}

	result := &ListResult{Items: areas}
	if len(areas) == fetchLimit {
		result.Items = areas[:limit]
		result.NextCursor = encodeCursor(areas[limit-1])
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE areas SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating area status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAreaNotFound
	}
	return nil
}

func scanArea(row pgx.Row) (*Area, error) {
	var (
		a      Area
		status string
	)
	err := row.Scan(
		&a.ID, &a.Name,
		&a.Bounds.South, &a.Bounds.West, &a.Bounds.North, &a.Bounds.East,
		&a.Resolution, &a.PointCount, &a.RouteCount, &a.GridPolyline, &a.NetworkRef,
		&status, &a.DurationDays, &a.IntervalMinutes, &a.TargetCount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
