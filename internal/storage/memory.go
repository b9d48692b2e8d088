package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"avalia/internal/feedback/models"
)

// InMemoryStore keeps durable-store semantics without a database. It backs
// unit tests and the zero-dependency dev mode; it intentionally favors
// clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.FeedbackRecord
	now     func() time.Time
}

// NewInMemoryStore creates an empty in-memory durable store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

// Insert assigns an ID and CreatedAt (when absent) and appends the record.
func (s *InMemoryStore) Insert(_ context.Context, record models.FeedbackRecord) (models.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	s.records = append(s.records, record)
	return record, nil
}

// ListAll returns a copy of every record in insertion order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FeedbackRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Count returns the number of stored records.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
