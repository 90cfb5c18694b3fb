package area

import (
	"context"
	"strings"
	"time"
)

// defaultListLimit applies when ListOptions.Limit is not positive.
const defaultListLimit = 20

// ListOptions filters and pages area listings.
type ListOptions struct {
	// Limit caps the number of areas returned. Values below 1 fall back
	// to a repository default.
	Limit int

	// Cursor resumes a previous listing. Empty starts from the newest
	// area. Cursors that did not come from a ListResult fail with
	// ErrInvalidCursor.
	Cursor string

	// Status restricts the listing to one lifecycle status when set.
	Status Status
}

// ListResult is one page of areas, newest first.
type ListResult struct {
	Items []*Area

	// NextCursor resumes the listing after the last item. Empty means
	// the listing is exhausted.
	NextCursor string
}

// Repository stores area records.
type Repository interface {
	// Create persists a new area. Fails with ErrDuplicateName when the
	// name is already taken.
	Create(ctx context.Context, a *Area) error

	// Get returns the area with the given ID, or ErrAreaNotFound.
	Get(ctx context.Context, id string) (*Area, error)

	// List returns areas ordered by creation time descending, ties
	// broken by ID descending.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// UpdateStatus moves the area to the given status and refreshes its
	// update time. Fails with ErrAreaNotFound for unknown IDs.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Cursors pair the creation time with the ID so pages stay stable when
// several areas share a timestamp.
func encodeCursor(a *Area) string {
	return a.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + a.ID
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, id, ok := strings.Cut(cursor, "|")
	if !ok || id == "" {
		return time.Time{}, "", ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	return createdAt, id, nil
}
