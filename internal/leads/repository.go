package leads

import (
	"context"
	"sync"
)

// Repository persists finalized lead records keyed by thread id. Upsert
// overwrites the existing row for the same thread and appends otherwise.
type Repository interface {
	Upsert(ctx context.Context, record *Record) error
}

// NotConfiguredRepository rejects every upsert with ErrNotConfigured. Wired in
// when the service starts without spreadsheet credentials, so the endpoint
// reports a configuration problem instead of silently dropping leads.
type NotConfiguredRepository struct{}

func (NotConfiguredRepository) Upsert(context.Context, *Record) error {
	return ErrNotConfigured
}

// InMemoryRepository keeps records in a map. Used in tests and when the
// spreadsheet integration is not configured in development.
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

// Upsert stores the record, replacing any previous record for the thread.
func (r *InMemoryRepository) Upsert(_ context.Context, record *Record) error {
	r.mu.Lock()
	r.records[record.ThreadID] = record
	r.mu.Unlock()
	return nil
}

// Get returns the stored record for a thread, or nil.
func (r *InMemoryRepository) Get(threadID string) *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[threadID]
}

// Len returns the number of stored records.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
