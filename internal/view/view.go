// Package view computes filtered, sorted projections of the current record
// set on demand. Projections are recomputed per call rather than maintained
// incrementally: they sit on the read path, and per-venue feedback volumes
// keep a full pass cheap. If volumes ever grow past that, indexing starts
// here.
package view

import (
	"sort"

	"avalia/internal/feedback/models"

	dErrors "avalia/pkg/domain-errors"
)

// SortKey selects the projection ordering.
type SortKey string

const (
	// SortRecent orders by CreatedAt descending, ties by ID descending.
	SortRecent SortKey = "recent"
	// SortBest orders by per-record overall average descending, ties by
	// CreatedAt descending.
	SortBest SortKey = "best"
	// SortWorst orders by per-record overall average ascending, ties by
	// CreatedAt descending.
	SortWorst SortKey = "worst"
)

// ParseSortKey constructs a SortKey from external input. An empty value
// defaults to SortRecent.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortRecent, nil
	case SortRecent, SortBest, SortWorst:
		return SortKey(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid sort key: "+s)
}

// Filter restricts a projection. MinRating 0 means no filter; 1..5 keeps only
// records whose unrounded six-score mean is >= MinRating, so MinRating 5
// requires a perfect 5.0.
type Filter struct {
	MinRating int
}

// ParseFilter constructs a Filter from an external minimum-rating value.
func ParseFilter(minRating int) (Filter, error) {
	if minRating < 0 || minRating > 5 {
		return Filter{}, dErrors.New(dErrors.CodeInvalidInput, "minimum rating must be between 0 and 5")
	}
	return Filter{MinRating: minRating}, nil
}

func (f Filter) keep(record models.FeedbackRecord) bool {
	if f.MinRating == 0 {
		return true
	}
	return record.OverallAverage() >= float64(f.MinRating)
}

// Project returns the filtered records in the requested order. It is a pure
// function of its inputs: identical inputs yield an identical, fully
// deterministic ordering (every comparator ends in an ID tie-break), so
// repeated renders never shuffle unrelated rows.
func Project(records []models.FeedbackRecord, filter Filter, key SortKey) []models.FeedbackRecord {
	out := make([]models.FeedbackRecord, 0, len(records))
	for _, record := range records {
		if filter.keep(record) {
			out = append(out, record)
		}
	}

	var less func(a, b models.FeedbackRecord) bool
	switch key {
	case SortBest:
		less = func(a, b models.FeedbackRecord) bool {
			if aa, ba := a.OverallAverage(), b.OverallAverage(); aa != ba {
				return aa > ba
			}
			return byRecency(a, b)
		}
	case SortWorst:
		less = func(a, b models.FeedbackRecord) bool {
			if aa, ba := a.OverallAverage(), b.OverallAverage(); aa != ba {
				return aa < ba
			}
			return byRecency(a, b)
		}
	default:
		less = byRecency
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// byRecency orders by CreatedAt descending with ID descending as the final
// tie-break.
func byRecency(a, b models.FeedbackRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
