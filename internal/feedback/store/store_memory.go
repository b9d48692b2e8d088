package store

import (
	"sync"

	"avalia/internal/feedback/metrics"
	"avalia/internal/feedback/models"
)

// InMemoryRecordStore holds the full record set loaded from durable storage at
// startup plus records appended afterward. All writes serialize through one
// mutex; subscriber notification happens inside the critical section so a
// reader never observes aggregates ahead of (or behind) the record set.
type InMemoryRecordStore struct {
	mu          sync.RWMutex
	byID        map[string]models.FeedbackRecord
	records     []models.FeedbackRecord
	subscribers []Subscriber
	metrics     *metrics.Metrics
}

// NewInMemoryRecordStore creates an empty record store. metrics may be nil.
func NewInMemoryRecordStore(m *metrics.Metrics) *InMemoryRecordStore {
	return &InMemoryRecordStore{byID: make(map[string]models.FeedbackRecord), metrics: m}
}

// Subscribe registers a subscriber for future appends. Intended to be called
// during wiring, before any writer runs.
func (s *InMemoryRecordStore) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Append validates and accepts a record. Redelivery of an identical record is
// absorbed as a no-op; a conflicting payload under a known ID returns
// ErrDuplicateConflict. On success every subscriber sees the record before
// Append returns.
func (s *InMemoryRecordStore) Append(record models.FeedbackRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[record.ID]; ok {
		if existing.Equal(record) {
			s.metrics.IncrementDuplicates()
			return nil
		}
		return ErrDuplicateConflict
	}

	s.byID[record.ID] = record
	s.records = append(s.records, record)
	for _, fn := range s.subscribers {
		fn(record)
	}
	s.metrics.IncrementAccepted()
	return nil
}

// All returns a copy of the record set.
func (s *InMemoryRecordStore) All() []models.FeedbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FeedbackRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of accepted records.
func (s *InMemoryRecordStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Rebuild hands fn a copy of the record set under the write lock. Appends
// block until fn returns, so the set fn sees is exactly the set whose folds
// any derived state will have absorbed when it is published.
func (s *InMemoryRecordStore) Rebuild(fn func(records []models.FeedbackRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FeedbackRecord, len(s.records))
	copy(out, s.records)
	return fn(out)
}
