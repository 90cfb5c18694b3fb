package snapshot

import "context"

// ListOptions contains options for listing snapshots.
type ListOptions struct {
	// Limit caps the number of returned snapshots. Defaults to 50.
	Limit int

	// Before restricts results to snapshots with Seq below it.
	// Negative means start from the newest snapshot.
	Before int
}

// ListResult contains one page of snapshots, newest first.
type ListResult struct {
	Items []*Snapshot

	// NextBefore is the Before value for the next page, or negative when
	// there are no further pages.
	NextBefore int
}

// Repository defines the interface for snapshot persistence. Appends for a
// single area must be serialized by the caller; appends for different areas
// may proceed concurrently.
type Repository interface {
	// Append atomically persists a snapshot together with its route
	// samples, assigning the next sequence index for the area. On success
	// the snapshot's Seq field is set to the assigned index. A failed
	// append never leaves a partial snapshot behind.
	Append(ctx context.Context, snap *Snapshot) error

	// Count returns the number of snapshots recorded for an area.
	// Schedulers re-derive remaining work from this count, so it must be
	// cheap to call.
	Count(ctx context.Context, areaID string) (int, error)

	// Latest returns the most recent snapshot for an area without its
	// per-route samples. Returns ErrSnapshotNotFound if none exist.
	Latest(ctx context.Context, areaID string) (*Snapshot, error)

	// Get returns a single snapshot including its per-route samples.
	// Returns ErrSnapshotNotFound if absent.
	Get(ctx context.Context, areaID string, seq int) (*Snapshot, error)

	// List returns snapshots for an area in descending sequence order,
	// without per-route samples.
	List(ctx context.Context, areaID string, opts ListOptions) (*ListResult, error)
}
