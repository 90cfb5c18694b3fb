package area

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteRepository is a database/sql Repository for single-node
// deployments. Timestamps are stored as integer unix milliseconds so
// keyset ordering works without driver-specific time formats.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository returns a Repository backed by the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, a *Area) error {
	query := `
		INSERT INTO areas (` + areaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Name,
		a.Bounds.South, a.Bounds.West, a.Bounds.North, a.Bounds.East,
		a.Resolution, a.PointCount, a.RouteCount, a.GridPolyline, nullableString(a.NetworkRef),
		string(a.Status), a.DurationDays, a.IntervalMinutes, a.TargetCount,
		a.CreatedAt.UTC().UnixMilli(), a.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting area: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas WHERE id = ?`

	a, err := scanSQLiteArea(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("querying area: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = defaultListLimit
	}

	var (
		cursorAt time.Time
		cursorID string
	)
	cursorFlag := 0
	if opts.Cursor != "" {
		var err error
		cursorAt, cursorID, err = decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		cursorFlag = 1
	}

	// Fetch one extra row to learn whether another page exists.
	fetchLimit := limit + 1

	query := `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE (? = '' OR status = ?)
		  AND (? = 0 OR (created_at, id) < (?, ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(opts.Status), string(opts.Status),
		cursorFlag, cursorAt.UnixMilli(), cursorID,
		fetchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	areas := make([]*Area, 0, fetchLimit)
	for rows.Next() {
		a, err := scanSQLiteArea(rows)
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

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE areas SET status = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("updating area status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating area status: %w", err)
	}
	if affected == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteArea(row scanner) (*Area, error) {
	var (
		a          Area
		networkRef sql.NullString
		status     string
		createdMs  int64
		updatedMs  int64
	)
	err := row.Scan(
		&a.ID, &a.Name,
		&a.Bounds.South, &a.Bounds.West, &a.Bounds.North, &a.Bounds.East,
		&a.Resolution, &a.PointCount, &a.RouteCount, &a.GridPolyline, &networkRef,
		&status, &a.DurationDays, &a.IntervalMinutes, &a.TargetCount,
		&createdMs, &updatedMs,
	)
	if err != nil {
		return nil, err
	}
	if networkRef.Valid {
		a.NetworkRef = &networkRef.String
	}
	a.Status = Status(status)
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &a, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
