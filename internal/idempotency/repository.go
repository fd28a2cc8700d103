package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository implements Repository with a mutex-guarded map. Suitable
// for single-instance deployments; keys do not survive a restart.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
	}
}

// Get retrieves a record by key. Returns ErrKeyNotFound when absent.
func (r *InMemoryRepository) Get(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return record.clone(), nil
}

// Store saves a new record. Returns ErrKeyExists on duplicates.
func (r *InMemoryRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Key]; exists {
		return ErrKeyExists
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	r.records[record.Key] = record.clone()
	return nil
}

// DeleteOlderThan removes records older than the given duration.
func (r *InMemoryRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-duration)
	deleted := int64(0)

	for key, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			deleted++
		}
	}

	return deleted, nil
}

// clone copies a record so callers cannot mutate stored state.
func (rec *Record) clone() *Record {
	if rec == nil {
		return nil
	}
	copied := *rec
	return &copied
}
