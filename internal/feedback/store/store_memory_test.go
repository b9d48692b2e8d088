package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"avalia/internal/feedback/models"

	dErrors "avalia/pkg/domain-errors"
)

type InMemoryRecordStoreSuite struct {
	suite.Suite
	store *InMemoryRecordStore
}

func TestInMemoryRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryRecordStoreSuite))
}

func (s *InMemoryRecordStoreSuite) SetupTest() {
	s.store = NewInMemoryRecordStore(nil)
}

func validRecord(id string) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:        id,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Customer: models.Customer{
			Name:      "Bruno Lima",
			CPF:       "123.456.789-09",
			Phone:     "+55 21 99876-5432",
			Instagram: "@bruno.lima",
		},
		Scores:  models.Scores{FoodQuality: 5, Service: 4, WaitTime: 3, Cleanliness: 5, ValueForMoney: 4, Ambiance: 4},
		Comment: "great dinner",
	}
}

func (s *InMemoryRecordStoreSuite) TestAppend() {
	s.Run("accepted record becomes visible", func() {
		s.Require().NoError(s.store.Append(validRecord("r1")))
		s.Equal(1, s.store.Count())
		all := s.store.All()
		s.Require().Len(all, 1)
		s.Equal("r1", all[0].ID)
	})

	s.Run("identical redelivery is a no-op", func() {
		s.Require().NoError(s.store.Append(validRecord("r1")))
		s.Equal(1, s.store.Count())
	})

	s.Run("same id with different payload conflicts", func() {
		conflicting := validRecord("r1")
		conflicting.Comment = "tampered"
		err := s.store.Append(conflicting)
		s.Require().ErrorIs(err, ErrDuplicateConflict)
		s.Equal(1, s.store.Count())
	})
}

func (s *InMemoryRecordStoreSuite) TestAppendRejectsInvalid() {
	cases := map[string]func(*models.FeedbackRecord){
		"score above range": func(r *models.FeedbackRecord) { r.Scores.Service = 6 },
		"score below range": func(r *models.FeedbackRecord) { r.Scores.Ambiance = 0 },
		"missing cpf":       func(r *models.FeedbackRecord) { r.Customer.CPF = "" },
		"missing name":      func(r *models.FeedbackRecord) { r.Customer.Name = "" },
		"missing phone":     func(r *models.FeedbackRecord) { r.Customer.Phone = "" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			record := validRecord("bad")
			mutate(&record)
			err := s.store.Append(record)
			s.Require().Error(err)

			var domainErr *dErrors.Error
			s.Require().ErrorAs(err, &domainErr)
			s.Equal(dErrors.CodeInvalidInput, domainErr.Code)
			s.Equal(0, s.store.Count())
		})
	}
}

func (s *InMemoryRecordStoreSuite) TestAppendAllowsEmptyComment() {
	record := validRecord("r2")
	record.Comment = ""
	s.Require().NoError(s.store.Append(record))
}

// Subscribers run inside Append: by the time Append returns, every subscriber
// has seen the record and the record is in All().
func (s *InMemoryRecordStoreSuite) TestSubscriberNotifiedBeforeReturn() {
	var seen []string
	s.store.Subscribe(func(r models.FeedbackRecord) {
		seen = append(seen, r.ID)
		// The record is already in the working set during notification. The
		// write lock is held here, so inspect the slice directly.
		s.Equal(1, len(s.store.records))
	})

	s.Require().NoError(s.store.Append(validRecord("r1")))
	s.Equal([]string{"r1"}, seen)

	s.Run("duplicate does not re-notify", func() {
		s.Require().NoError(s.store.Append(validRecord("r1")))
		s.Equal([]string{"r1"}, seen)
	})
}

func (s *InMemoryRecordStoreSuite) TestAllReturnsSnapshotCopy() {
	s.Require().NoError(s.store.Append(validRecord("r1")))
	all := s.store.All()
	all[0].Comment = "mutated copy"

	s.Equal("great dinner", s.store.All()[0].Comment)
}

func (s *InMemoryRecordStoreSuite) TestRebuild() {
	s.Run("hands fn a copy of the full set", func() {
		s.Require().NoError(s.store.Append(validRecord("r1")))
		s.Require().NoError(s.store.Append(validRecord("r2")))

		var seen []models.FeedbackRecord
		s.Require().NoError(s.store.Rebuild(func(records []models.FeedbackRecord) error {
			seen = records
			return nil
		}))
		s.Require().Len(seen, 2)

		seen[0].Comment = "mutated"
		s.Equal("great dinner", s.store.All()[0].Comment)
	})

	s.Run("propagates fn's error", func() {
		s.Require().ErrorIs(
			s.store.Rebuild(func([]models.FeedbackRecord) error { return ErrDuplicateConflict }),
			ErrDuplicateConflict,
		)
	})

	s.Run("blocks appends until fn returns", func() {
		s.Equal(2, s.store.Count())

		entered := make(chan struct{})
		release := make(chan struct{})
		rebuildDone := make(chan struct{})
		go func() {
			defer close(rebuildDone)
			_ = s.store.Rebuild(func(records []models.FeedbackRecord) error {
				close(entered)
				<-release
				s.Len(records, 2)
				return nil
			})
		}()
		<-entered

		appendDone := make(chan struct{})
		go func() {
			defer close(appendDone)
			s.NoError(s.store.Append(validRecord("r3")))
		}()

		select {
		case <-appendDone:
			s.Fail("append completed while a rebuild held the write lock")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		<-rebuildDone
		<-appendDone
		s.Equal(3, s.store.Count())
	})
}
