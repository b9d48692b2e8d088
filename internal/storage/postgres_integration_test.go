//go:build integration

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"avalia/internal/feedback/models"
	"avalia/internal/storage"
	"avalia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *storage.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	pg := containers.NewPostgresContainer(s.T())
	store, err := storage.NewPostgresStore(context.Background(), pg.URL)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func newSubmission(cpf string, score int) models.FeedbackRecord {
	return models.FeedbackRecord{
		Customer: models.Customer{
			Name: "Marina Costa", CPF: cpf,
			Phone: "+55 11 91234-5678", Instagram: "@marina.costa",
		},
		Scores: models.Scores{
			FoodQuality: score, Service: score, WaitTime: score,
			Cleanliness: score, ValueForMoney: score, Ambiance: score,
		},
		Comment: "great night " + uuid.NewString(),
	}
}

func (s *PostgresStoreSuite) TestInsertAssignsIdentity() {
	ctx := context.Background()

	stored, err := s.store.Insert(ctx, newSubmission("529.982.247-25", 4))
	s.Require().NoError(err)

	s.NotEmpty(stored.ID)
	s.False(stored.CreatedAt.IsZero())
	s.WithinDuration(time.Now().UTC(), stored.CreatedAt, time.Minute)
	s.Equal("529.982.247-25", stored.Customer.CPF)
}

func (s *PostgresStoreSuite) TestListAllReturnsInsertionOrder() {
	ctx := context.Background()

	before, err := s.store.Count(ctx)
	s.Require().NoError(err)

	first, err := s.store.Insert(ctx, newSubmission("111.444.777-35", 5))
	s.Require().NoError(err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.store.Insert(ctx, newSubmission("123.456.789-09", 2))
	s.Require().NoError(err)

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Len(all, before+2)

	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	s.Contains(ids, first.ID)
	s.Contains(ids, second.ID)

	// Rows come back ordered by creation time, so the two new records are
	// the last two and in submission order.
	s.Equal(first.ID, all[len(all)-2].ID)
	s.Equal(second.ID, all[len(all)-1].ID)
}

func (s *PostgresStoreSuite) TestRoundTripPreservesPayload() {
	ctx := context.Background()

	submitted := newSubmission("987.654.321-00", 3)
	submitted.Comment = `comment with "quotes", commas and
a line break`
	stored, err := s.store.Insert(ctx, submitted)
	s.Require().NoError(err)

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)

	var got models.FeedbackRecord
	for _, r := range all {
		if r.ID == stored.ID {
			got = r
			break
		}
	}
	s.Equal(stored.ID, got.ID)
	s.Equal(submitted.Customer, got.Customer)
	s.Equal(submitted.Scores, got.Scores)
	s.Equal(submitted.Comment, got.Comment)
}

func (s *PostgresStoreSuite) TestScoreRangeEnforcedBySchema() {
	ctx := context.Background()

	bad := newSubmission("529.982.247-25", 4)
	bad.Scores.Ambiance = 9
	_, err := s.store.Insert(ctx, bad)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestHealth() {
	s.NoError(s.store.Health(context.Background()))
}
