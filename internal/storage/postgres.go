package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"avalia/internal/feedback/models"
)

// schema is applied idempotently at startup. A migration tool would be
// overkill for a single table.
const schema = `
CREATE TABLE IF NOT EXISTS feedback_records (
	id                 UUID PRIMARY KEY,
	created_at         TIMESTAMPTZ NOT NULL,
	customer_name      TEXT NOT NULL,
	customer_cpf       TEXT NOT NULL,
	customer_phone     TEXT NOT NULL,
	customer_instagram TEXT NOT NULL,
	food_quality       SMALLINT NOT NULL CHECK (food_quality BETWEEN 1 AND 5),
	service            SMALLINT NOT NULL CHECK (service BETWEEN 1 AND 5),
	wait_time          SMALLINT NOT NULL CHECK (wait_time BETWEEN 1 AND 5),
	cleanliness        SMALLINT NOT NULL CHECK (cleanliness BETWEEN 1 AND 5),
	value_for_money    SMALLINT NOT NULL CHECK (value_for_money BETWEEN 1 AND 5),
	ambiance           SMALLINT NOT NULL CHECK (ambiance BETWEEN 1 AND 5),
	comment            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS feedback_records_created_at_idx ON feedback_records (created_at);
`

// PostgresStore persists feedback records in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given URL, applies the schema, and returns
// the store.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Insert assigns ID and CreatedAt and persists the record.
func (s *PostgresStore) Insert(ctx context.Context, record models.FeedbackRecord) (models.FeedbackRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_records (
			id, created_at,
			customer_name, customer_cpf, customer_phone, customer_instagram,
			food_quality, service, wait_time, cleanliness, value_for_money, ambiance,
			comment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID, record.CreatedAt,
		record.Customer.Name, record.Customer.CPF, record.Customer.Phone, record.Customer.Instagram,
		record.Scores.FoodQuality, record.Scores.Service, record.Scores.WaitTime,
		record.Scores.Cleanliness, record.Scores.ValueForMoney, record.Scores.Ambiance,
		record.Comment,
	)
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("insert feedback record: %w", err)
	}
	return record, nil
}

// ListAll returns every stored record ordered by insertion time.
func (s *PostgresStore) ListAll(ctx context.Context) ([]models.FeedbackRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at,
			customer_name, customer_cpf, customer_phone, customer_instagram,
			food_quality, service, wait_time, cleanliness, value_for_money, ambiance,
			comment
		FROM feedback_records
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list feedback records: %w", err)
	}
	defer rows.Close()

	var records []models.FeedbackRecord
	for rows.Next() {
		var r models.FeedbackRecord
		if err := rows.Scan(
			&r.ID, &r.CreatedAt,
			&r.Customer.Name, &r.Customer.CPF, &r.Customer.Phone, &r.Customer.Instagram,
			&r.Scores.FoodQuality, &r.Scores.Service, &r.Scores.WaitTime,
			&r.Scores.Cleanliness, &r.Scores.ValueForMoney, &r.Scores.Ambiance,
			&r.Comment,
		); err != nil {
			return nil, fmt.Errorf("scan feedback record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count feedback records: %w", err)
	}
	return count, nil
}

// Health checks connectivity for the readiness probe.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
