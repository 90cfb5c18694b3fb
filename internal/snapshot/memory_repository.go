package snapshot

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository
// or SQLiteRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]*Snapshot
}

// NewInMemoryRepository creates a new in-memory snapshot repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		snapshots: make(map[string][]*Snapshot),
	}
}

// Append persists a snapshot, assigning the next sequence index.
func (r *InMemoryRepository) Append(_ context.Context, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap.Seq = len(r.snapshots[snap.AreaID])

	// Store a copy so later caller mutations cannot leak in
	cpy := *snap
	cpy.Samples = make([]RouteSample, len(snap.Samples))
	copy(cpy.Samples, snap.Samples)
	r.snapshots[snap.AreaID] = append(r.snapshots[snap.AreaID], &cpy)
	return nil
}

// Count returns the number of snapshots recorded for an area.
func (r *InMemoryRepository) Count(_ context.Context, areaID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.snapshots[areaID]), nil
}

// Latest returns the most recent snapshot for an area.
func (r *InMemoryRepository) Latest(_ context.Context, areaID string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.snapshots[areaID]
	if len(list) == 0 {
		return nil, ErrSnapshotNotFound
	}

	cpy := *list[len(list)-1]
	cpy.Samples = nil
	return &cpy, nil
}

// Get returns a single snapshot including its route samples.
func (r *InMemoryRepository) Get(_ context.Context, areaID string, seq int) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.snapshots[areaID]
	if seq < 0 || seq >= len(list) {
		return nil, ErrSnapshotNotFound
	}

	cpy := *list[seq]
	cpy.Samples = make([]RouteSample, len(list[seq].Samples))
	copy(cpy.Samples, list[seq].Samples)
	return &cpy, nil
}

// List returns snapshots in descending sequence order.
func (r *InMemoryRepository) List(_ context.Context, areaID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	// Sequence indices double as slice indices here
	list := r.snapshots[areaID]
	start := len(list) - 1
	if opts.Before >= 0 && opts.Before-1 < start {
		start = opts.Before - 1
	}

	result := &ListResult{NextBefore: -1}
	for i := start; i >= 0 && len(result.Items) < limit; i-- {
		cpy := *list[i]
		cpy.Samples = nil
		result.Items = append(result.Items, &cpy)
	}

	if len(result.Items) == limit && start-limit >= 0 {
		result.NextBefore = result.Items[limit-1].Seq
	}

	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
