package aggregate

import (
	"math"

	"avalia/internal/feedback/models"
)

// CriterionScore pairs a criterion with its all-time average.
type CriterionScore struct {
	Criterion models.Criterion `json:"criterion"`
	Average   float64          `json:"average"`
}

// Statistics is a read-only view of the running aggregate, shaped for the
// operator dashboard.
//
// OverallAverage is deliberately the mean of the six criterion-level averages,
// not the mean of per-record averages; the two diverge slightly and the
// dashboard formula is the criterion-level one. Histogram bucket i counts
// records whose rounded overall average is i+1 stars.
type Statistics struct {
	Count                  int                          `json:"count"`
	PerCriterionAverage    map[models.Criterion]float64 `json:"per_criterion_average"`
	OverallAverage         float64                      `json:"overall_average"`
	BestCriterion          CriterionScore               `json:"best_criterion"`
	WorstCriterion         CriterionScore               `json:"worst_criterion"`
	Histogram              [5]int                       `json:"histogram"`
	DistinctCustomers      int                          `json:"distinct_customers"`
	RecurringCustomerRatio int                          `json:"recurring_customer_ratio"`
}

// Snapshot derives Statistics from the most recently published aggregate
// without mutating engine state. With no records folded yet it returns zero
// values throughout rather than dividing by zero.
func (e *Engine) Snapshot() Statistics {
	agg := e.current.Load()

	stats := Statistics{
		Count:               agg.count,
		PerCriterionAverage: make(map[models.Criterion]float64, len(models.Criteria)),
		Histogram:           agg.histogram,
		DistinctCustomers:   agg.distinct,
	}
	if agg.count == 0 {
		return stats
	}

	var total float64
	for i, criterion := range models.Criteria {
		avg := float64(agg.sums[i]) / float64(agg.count)
		stats.PerCriterionAverage[criterion] = avg
		total += avg

		// Strict comparisons keep ties on the first-declared criterion.
		if i == 0 || avg > stats.BestCriterion.Average {
			stats.BestCriterion = CriterionScore{Criterion: criterion, Average: avg}
		}
		if i == 0 || avg < stats.WorstCriterion.Average {
			stats.WorstCriterion = CriterionScore{Criterion: criterion, Average: avg}
		}
	}
	stats.OverallAverage = total / float64(len(models.Criteria))

	if agg.distinct > 0 {
		stats.RecurringCustomerRatio = int(math.Round(100 * float64(agg.recurring) / float64(agg.distinct)))
	}
	return stats
}
