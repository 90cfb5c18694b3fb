package area

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is a map-backed Repository for tests and local
// development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	areas map[string]*Area
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository returns an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{areas: make(map[string]*Area)}
}

func (r *InMemoryRepository) Create(ctx context.Context, a *Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.areas {
		if existing.Name == a.Name {
			return ErrDuplicateName
		}
	}
	r.areas[a.ID] = copyArea(a)
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Area, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.areas[id]
	if !ok {
		return nil, ErrAreaNotFound
	}
	return copyArea(a), nil
}

func (r *InMemoryRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = defaultListLimit
	}

	r.mu.RLock()
	matched := make([]*Area, 0, len(r.areas))
	for _, a := range r.areas {
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := 0
	if opts.Cursor != "" {
		cursorAt, cursorID, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		for start < len(matched) && !afterCursor(matched[start], cursorAt, cursorID) {
			start++
		}
	}

	result := &ListResult{Items: make([]*Area, 0, limit)}
	for i := start; i < len(matched) && len(result.Items) < limit; i++ {
		result.Items = append(result.Items, copyArea(matched[i]))
	}
	if start+len(result.Items) < len(matched) && len(result.Items) > 0 {
		result.NextCursor = encodeCursor(result.Items[len(result.Items)-1])
	}
	return result, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.areas[id]
	if !ok {
		return ErrAreaNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// afterCursor reports whether a sorts strictly after the cursor position
// in (created_at desc, id desc) order.
func afterCursor(a *Area, cursorAt time.Time, cursorID string) bool {
	if a.CreatedAt.Before(cursorAt) {
		return true
	}
	return a.CreatedAt.Equal(cursorAt) && a.ID < cursorID
}

// copyArea returns an independent copy so later caller mutations cannot
// leak into the store.
func copyArea(a *Area) *Area {
	dup := *a
	if a.NetworkRef != nil {
		ref := *a.NetworkRef
		dup.NetworkRef = &ref
	}
	return &dup
}
