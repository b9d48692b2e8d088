package models

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "avalia/pkg/domain-errors"
)

// Criterion identifies one of the six fixed rating dimensions. Declaration
// order matters: ranking ties are broken by the first-declared criterion.
type Criterion string

const (
	CriterionFoodQuality   Criterion = "food_quality"
	CriterionService       Criterion = "service"
	CriterionWaitTime      Criterion = "wait_time"
	CriterionCleanliness   Criterion = "cleanliness"
	CriterionValueForMoney Criterion = "value_for_money"
	CriterionAmbiance      Criterion = "ambiance"
)

// Criteria lists the rating dimensions in declaration order.
var Criteria = [6]Criterion{
	CriterionFoodQuality,
	CriterionService,
	CriterionWaitTime,
	CriterionCleanliness,
	CriterionValueForMoney,
	CriterionAmbiance,
}

// Scores holds the six criterion star ratings of a single record. Each score
// is an integer between 1 and 5 inclusive.
type Scores struct {
	FoodQuality   int `json:"food_quality" validate:"required,min=1,max=5"`
	Service       int `json:"service" validate:"required,min=1,max=5"`
	WaitTime      int `json:"wait_time" validate:"required,min=1,max=5"`
	Cleanliness   int `json:"cleanliness" validate:"required,min=1,max=5"`
	ValueForMoney int `json:"value_for_money" validate:"required,min=1,max=5"`
	Ambiance      int `json:"ambiance" validate:"required,min=1,max=5"`
}

// List returns the scores in Criteria declaration order.
func (s Scores) List() [6]int {
	return [6]int{s.FoodQuality, s.Service, s.WaitTime, s.Cleanliness, s.ValueForMoney, s.Ambiance}
}

// Customer identifies who submitted the feedback. CPF is the identity key
// used for recurrence detection; it is assumed, not verified, to uniquely
// identify a customer.
type Customer struct {
	Name      string `json:"name" validate:"required"`
	CPF       string `json:"cpf" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Instagram string `json:"instagram" validate:"required"`
}

// FeedbackRecord is one accepted customer rating. Records are immutable once
// accepted: corrections arrive as new records, never as mutations, which
// keeps aggregation append-only.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Customer  Customer  `json:"customer" validate:"required"`
	Scores    Scores    `json:"scores" validate:"required"`
	Comment   string    `json:"comment,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the field-validity invariants: all customer identity fields
// present and every score in [1,5]. Records failing this never enter a store.
func (r FeedbackRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid feedback record: "+err.Error())
	}
	return nil
}

// OverallAverage is the plain mean of the record's six raw scores. Used for
// per-record filtering and sorting; deliberately unrounded.
func (r FeedbackRecord) OverallAverage() float64 {
	total := 0
	for _, v := range r.Scores.List() {
		total += v
	}
	return float64(total) / 6
}

// RoundedAverage is the record's overall average rounded to the nearest
// integer, .5 rounding up. It selects the record's histogram bucket.
func (r FeedbackRecord) RoundedAverage() int {
	return int(math.Floor(r.OverallAverage() + 0.5))
}

// Equal reports whether two records carry identical field values. Used by the
// record store to distinguish an idempotent redelivery from a conflicting
// payload under the same ID.
func (r FeedbackRecord) Equal(other FeedbackRecord) bool {
	return r.ID == other.ID &&
		r.CreatedAt.Equal(other.CreatedAt) &&
		r.Customer == other.Customer &&
		r.Scores == other.Scores &&
		r.Comment == other.Comment
}
