package aggregate

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalia/internal/feedback/models"
)

func record(id string, cpf string, scores [6]int) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:        id,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Customer: models.Customer{
			Name:      "Ana Souza",
			CPF:       cpf,
			Phone:     "+55 11 91234-5678",
			Instagram: "@ana.souza",
		},
		Scores: models.Scores{
			FoodQuality:   scores[0],
			Service:       scores[1],
			WaitTime:      scores[2],
			Cleanliness:   scores[3],
			ValueForMoney: scores[4],
			Ambiance:      scores[5],
		},
	}
}

func uniform(id, cpf string, score int) models.FeedbackRecord {
	return record(id, cpf, [6]int{score, score, score, score, score, score})
}

func TestSnapshotEmpty(t *testing.T) {
	engine := NewEngine()
	stats := engine.Snapshot()

	assert.Equal(t, 0, stats.Count)
	assert.Empty(t, stats.PerCriterionAverage)
	assert.Zero(t, stats.OverallAverage)
	assert.Zero(t, stats.BestCriterion)
	assert.Zero(t, stats.WorstCriterion)
	assert.Equal(t, [5]int{}, stats.Histogram)
	assert.Equal(t, 0, stats.RecurringCustomerRatio)
}

// Three uniform records at 5, 1, and 3 stars: the dashboard average must be
// exactly 3.0, each record lands in its own histogram bucket, and with every
// criterion tied both rankings pick the first-declared criterion.
func TestSnapshotUniformScenario(t *testing.T) {
	engine := NewEngine()
	engine.Fold(uniform("a", "111", 5))
	engine.Fold(uniform("b", "222", 1))
	engine.Fold(uniform("c", "333", 3))

	stats := engine.Snapshot()
	require.Equal(t, 3, stats.Count)
	assert.InDelta(t, 3.0, stats.OverallAverage, 1e-9)
	assert.Equal(t, [5]int{1, 0, 1, 0, 1}, stats.Histogram)
	assert.Equal(t, models.CriterionFoodQuality, stats.BestCriterion.Criterion)
	assert.Equal(t, models.CriterionFoodQuality, stats.WorstCriterion.Criterion)
	assert.InDelta(t, 3.0, stats.BestCriterion.Average, 1e-9)
	assert.InDelta(t, 3.0, stats.WorstCriterion.Average, 1e-9)
	assert.Equal(t, 0, stats.RecurringCustomerRatio)
}

func TestSnapshotBestWorst(t *testing.T) {
	engine := NewEngine()
	engine.Fold(record("a", "111", [6]int{5, 4, 2, 4, 4, 4}))
	engine.Fold(record("b", "222", [6]int{5, 4, 1, 4, 4, 4}))

	stats := engine.Snapshot()
	assert.Equal(t, models.CriterionFoodQuality, stats.BestCriterion.Criterion)
	assert.InDelta(t, 5.0, stats.BestCriterion.Average, 1e-9)
	assert.Equal(t, models.CriterionWaitTime, stats.WorstCriterion.Criterion)
	assert.InDelta(t, 1.5, stats.WorstCriterion.Average, 1e-9)
}

// Ranking ties resolve to the earliest criterion in declaration order, not
// just to the very first criterion.
func TestSnapshotTieBreakDeclarationOrder(t *testing.T) {
	engine := NewEngine()
	engine.Fold(record("a", "111", [6]int{2, 5, 3, 5, 2, 3}))

	stats := engine.Snapshot()
	assert.Equal(t, models.CriterionService, stats.BestCriterion.Criterion)
	assert.Equal(t, models.CriterionFoodQuality, stats.WorstCriterion.Criterion)
}

// The histogram buckets records by rounded overall average with .5 rounding
// up.
func TestHistogramRounding(t *testing.T) {
	engine := NewEngine()
	// mean 3.5 rounds up to 4
	engine.Fold(record("a", "111", [6]int{3, 3, 3, 4, 4, 4}))
	// mean 2.1666 rounds to 2
	engine.Fold(record("b", "222", [6]int{2, 2, 2, 2, 2, 3}))

	stats := engine.Snapshot()
	assert.Equal(t, [5]int{0, 1, 0, 1, 0}, stats.Histogram)
}

func TestRecurringCustomerRatio(t *testing.T) {
	t.Run("all distinct is zero", func(t *testing.T) {
		engine := NewEngine()
		for i := range 4 {
			engine.Fold(uniform(fmt.Sprintf("r%d", i), fmt.Sprintf("cpf%d", i), 4))
		}
		assert.Equal(t, 0, engine.Snapshot().RecurringCustomerRatio)
	})

	t.Run("single shared cpf is one hundred", func(t *testing.T) {
		engine := NewEngine()
		for i := range 4 {
			engine.Fold(uniform(fmt.Sprintf("r%d", i), "shared", 4))
		}
		assert.Equal(t, 100, engine.Snapshot().RecurringCustomerRatio)
	})

	t.Run("one of three cpfs recurring rounds to thirty three", func(t *testing.T) {
		engine := NewEngine()
		engine.Fold(uniform("a", "one", 4))
		engine.Fold(uniform("b", "one", 4))
		engine.Fold(uniform("c", "two", 4))
		engine.Fold(uniform("d", "three", 4))
		stats := engine.Snapshot()
		assert.Equal(t, 3, stats.DistinctCustomers)
		assert.Equal(t, 33, stats.RecurringCustomerRatio)
	})
}

func fixtureRecords(n int) []models.FeedbackRecord {
	rng := rand.New(rand.NewSource(42))
	records := make([]models.FeedbackRecord, n)
	for i := range records {
		var scores [6]int
		for j := range scores {
			scores[j] = 1 + rng.Intn(5)
		}
		records[i] = record(fmt.Sprintf("rec-%d", i), fmt.Sprintf("cpf-%d", rng.Intn(n/3+1)), scores)
	}
	return records
}

// Fold is commutative: any order of folding the same record set yields an
// identical snapshot.
func TestFoldOrderInvariance(t *testing.T) {
	records := fixtureRecords(60)

	reference := NewEngine()
	for _, r := range records {
		reference.Fold(r)
	}
	want := reference.Snapshot()

	rng := rand.New(rand.NewSource(7))
	for range 10 {
		shuffled := append([]models.FeedbackRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		engine := NewEngine()
		for _, r := range shuffled {
			engine.Fold(r)
		}
		assert.Equal(t, want, engine.Snapshot())
	}
}

// Every criterion average stays within the score range and the overall
// average equals the mean of the six criterion averages.
func TestSnapshotAverageBounds(t *testing.T) {
	records := fixtureRecords(100)
	engine := NewEngine()
	for _, r := range records {
		engine.Fold(r)
	}

	stats := engine.Snapshot()
	var total float64
	for _, criterion := range models.Criteria {
		avg := stats.PerCriterionAverage[criterion]
		assert.GreaterOrEqual(t, avg, 1.0)
		assert.LessOrEqual(t, avg, 5.0)
		total += avg
	}
	assert.InDelta(t, total/6, stats.OverallAverage, 1e-9)
}

// Resync after a gap must land on the exact aggregate a clean storage-order
// fold would have produced.
func TestResyncMatchesCleanFold(t *testing.T) {
	records := fixtureRecords(80)

	clean := NewEngine()
	for _, r := range records {
		clean.Fold(r)
	}

	gappy := NewEngine()
	for i, r := range records {
		if i%3 == 0 { // simulate dropped deliveries
			continue
		}
		gappy.Fold(r)
	}
	require.NoError(t, gappy.Resync(context.Background(), records))

	assert.Equal(t, clean.Snapshot(), gappy.Snapshot())
}

func TestResyncCancelKeepsPreviousAggregate(t *testing.T) {
	records := fixtureRecords(30)
	engine := NewEngine()
	for _, r := range records {
		engine.Fold(r)
	}
	before := engine.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := engine.Resync(ctx, fixtureRecords(10))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, engine.Snapshot())
}

func TestFoldPanicsOnUnvalidatedRecord(t *testing.T) {
	engine := NewEngine()
	bad := record("a", "111", [6]int{5, 5, 0, 5, 5, 5})
	assert.Panics(t, func() { engine.Fold(bad) })
}

// Snapshots taken while folds are in flight must always see a consistent
// aggregate, never a partially-applied record.
func TestConcurrentFoldAndSnapshot(t *testing.T) {
	records := fixtureRecords(200)
	engine := NewEngine()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, r := range records {
			engine.Fold(r)
		}
	}()

	for range 200 {
		stats := engine.Snapshot()
		if stats.Count == 0 {
			continue
		}
		// A consistent aggregate keeps every average inside the score range.
		for _, avg := range stats.PerCriterionAverage {
			assert.GreaterOrEqual(t, avg, 1.0)
			assert.LessOrEqual(t, avg, 5.0)
		}
		total := 0
		for _, n := range stats.Histogram {
			total += n
		}
		assert.Equal(t, stats.Count, total)
	}
	wg.Wait()

	assert.Equal(t, len(records), engine.Snapshot().Count)
}
