package anchor

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/anchor-collective/anchor/internal/geo"
)

// Common errors for anchor repository operations.
var (
	ErrAnchorNotFound = errors.New("anchor not found")
	ErrAnchorExists   = errors.New("anchor already exists")

	// ErrUnlockCapReached is returned by IncrementUnlock when the counter is
	// already at max_unlock. The conditional check and the increment happen
	// as one atomic step so concurrent unlockers can never overshoot the cap.
	ErrUnlockCapReached = errors.New("unlock cap reached")
)

// Nearby pairs an anchor with its great-circle distance from a query point.
// The distance is used for radius filtering and ordering and is not exposed
// in API responses.
type Nearby struct {
	Anchor         *Anchor
	DistanceMeters float64
}

// Repository defines the interface for anchor data operations.
type Repository interface {
	// Insert stores a new anchor. Returns ErrAnchorExists on ID collision.
	Insert(ctx context.Context, a *Anchor) error

	// GetByID retrieves an anchor by its ID.
	GetByID(ctx context.Context, id string) (*Anchor, error)

	// Update rewrites the mutable fields of an existing anchor. The location
	// is always written as a complete point.
	Update(ctx context.Context, a *Anchor) error

	// Delete hard-deletes an anchor.
	Delete(ctx context.Context, id string) error

	// WithinRadius returns every anchor whose great-circle distance to
	// center is at most radiusMeters, with the distance attached.
	WithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) ([]Nearby, error)

	// IncrementUnlock atomically increments the unlock counter, but only
	// while it is below max_unlock (unbounded when max_unlock is unset).
	// Returns the counter value after the increment, or ErrUnlockCapReached.
	IncrementUnlock(ctx context.Context, id string) (int, error)

	// MarkExpired durably sets the anchor's status to EXPIRED so later reads
	// see the expiry without re-evaluating the time window.
	MarkExpired(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for testing and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	anchors map[string]*Anchor
}

// NewInMemoryRepository creates a new in-memory anchor repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		anchors: make(map[string]*Anchor),
	}
}

// Insert stores a new anchor. Returns ErrAnchorExists on ID collision.
func (r *InMemoryRepository) Insert(ctx context.Context, a *Anchor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.anchors[a.ID]; exists {
		return ErrAnchorExists
	}
	r.anchors[a.ID] = a.Clone()
	return nil
}

// GetByID retrieves an anchor by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Anchor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.anchors[id]
	if !ok {
		return nil, ErrAnchorNotFound
	}
	return a.Clone(), nil
}

// Update rewrites the mutable fields of an existing anchor. The unlock
// counter is deliberately not taken from the caller's copy: it only moves
// through IncrementUnlock.
func (r *InMemoryRepository) Update(ctx context.Context, a *Anchor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.anchors[a.ID]
	if !ok {
		return ErrAnchorNotFound
	}

	updated := a.Clone()
	updated.CurrentUnlock = existing.CurrentUnlock
	r.anchors[a.ID] = updated
	return nil
}

// Delete hard-deletes an anchor.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.anchors[id]; !ok {
		return ErrAnchorNotFound
	}
	delete(r.anchors, id)
	return nil
}

// WithinRadius returns every anchor within radiusMeters of center, ordered by
// ascending distance.
func (r *InMemoryRepository) WithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) ([]Nearby, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []Nearby
	for _, a := range r.anchors {
		d := center.DistanceMeters(a.Location)
		if d <= radiusMeters {
			results = append(results, Nearby{Anchor: a.Clone(), DistanceMeters: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	return results, nil
}

// IncrementUnlock atomically increments the unlock counter while it is below
// max_unlock. The check and the write happen under one lock, mirroring the
// conditional UPDATE the Postgres implementation issues.
func (r *InMemoryRepository) IncrementUnlock(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.anchors[id]
	if !ok {
		return 0, ErrAnchorNotFound
	}
	if a.MaxUnlock != nil && a.CurrentUnlock >= *a.MaxUnlock {
		return 0, ErrUnlockCapReached
	}
	a.CurrentUnlock++
	return a.CurrentUnlock, nil
}

// MarkExpired durably sets the anchor's status to EXPIRED.
func (r *InMemoryRepository) MarkExpired(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.anchors[id]
	if !ok {
		return ErrAnchorNotFound
	}
	a.Status = StatusExpired
	return nil
}
