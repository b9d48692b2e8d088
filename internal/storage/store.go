package storage

import (
	"context"

	"avalia/internal/feedback/models"
)

//go:generate mockgen -source=store.go -destination=mocks/store_mocks.go -package=mocks

// Store is the durable append + bulk-read collaborator. It is interface-driven
// so the service and live feed can run against Postgres in production and the
// in-memory implementation in tests and dev mode.
type Store interface {
	// Insert persists a record, assigning its ID and CreatedAt, and returns
	// the stored form. Field validation has already happened at the caller.
	Insert(ctx context.Context, record models.FeedbackRecord) (models.FeedbackRecord, error)

	// ListAll returns every stored record in insertion order. Used for the
	// startup bulk load and for gap recovery.
	ListAll(ctx context.Context) ([]models.FeedbackRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
