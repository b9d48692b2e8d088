package store

import (
	"avalia/internal/feedback/models"

	dErrors "avalia/pkg/domain-errors"
)

// RecordStore is the in-memory working set of accepted feedback records. It is
// interface-driven so services and the live feed can be tested against fakes.
type RecordStore interface {
	// Append accepts a record into the store. A byte-identical record under an
	// already-present ID is an idempotent no-op; the same ID with a different
	// payload is a conflict. Subscribers are notified synchronously before
	// Append returns, so a subscriber's view is never behind the store's.
	Append(record models.FeedbackRecord) error

	// All returns a snapshot copy of every record. Order is not significant;
	// callers impose their own ordering.
	All() []models.FeedbackRecord

	// Count returns the number of accepted records.
	Count() int

	// Rebuild runs fn with a copy of the full record set while holding the
	// store's write lock, so no append (and therefore no fold) can slip in
	// between taking the snapshot and fn completing. Rebuilders of derived
	// state must go through here rather than pairing All with their own
	// rebuild, or a concurrently appended record's fold can be overwritten.
	Rebuild(fn func(records []models.FeedbackRecord) error) error
}

// Subscriber receives each newly accepted record exactly once, synchronously,
// inside the store's write path.
type Subscriber func(record models.FeedbackRecord)

var (
	// ErrDuplicateConflict signals an append whose ID is already present with
	// different field values. This indicates upstream corruption and is
	// surfaced to the caller rather than silently resolved.
	ErrDuplicateConflict = dErrors.New(dErrors.CodeConflict, "record id already present with different payload")
)
