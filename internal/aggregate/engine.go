package aggregate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"avalia/internal/feedback/models"
)

// resyncCheckEvery bounds how many records a resync folds between context
// cancellation checks.
const resyncCheckEvery = 512

// aggregate is the immutable running state published to readers. Arrays keep
// the per-fold copy O(1); the CPF occurrence map stays private to the engine
// and only its derived counters are published.
type aggregate struct {
	count     int
	sums      [6]int
	histogram [5]int // bucket i holds records whose rounded average is i+1
	distinct  int    // distinct CPFs seen
	recurring int    // CPFs seen more than once
}

// Engine maintains running statistics over an append-only stream of accepted
// records. Writes serialize through one mutex; every mutation publishes a
// fresh aggregate value through an atomic pointer, so Snapshot never observes
// a partially-updated state.
type Engine struct {
	mu      sync.Mutex
	cpfSeen map[string]int
	current atomic.Pointer[aggregate]
}

// NewEngine creates an engine with an empty aggregate.
func NewEngine() *Engine {
	e := &Engine{cpfSeen: make(map[string]int)}
	e.current.Store(&aggregate{})
	return e
}

// Fold accumulates one accepted record into the running aggregate in O(1).
// It must be called exactly once per distinct accepted record; order does not
// matter (the sums, histogram, and occurrence counts are commutative).
//
// Fold panics on a record violating the score range. Validation belongs to the
// record store; a malformed record reaching Fold is a programming error and
// failing loudly beats silently corrupting every future snapshot.
func (e *Engine) Fold(record models.FeedbackRecord) {
	scores := record.Scores.List()
	for i, v := range scores {
		if v < 1 || v > 5 {
			panic(fmt.Sprintf("aggregate: unvalidated record %s reached Fold: score %s=%d out of range", record.ID, models.Criteria[i], v))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := *e.current.Load()
	next.count++
	for i, v := range scores {
		next.sums[i] += v
	}
	next.histogram[record.RoundedAverage()-1]++

	seen := e.cpfSeen[record.Customer.CPF]
	e.cpfSeen[record.Customer.CPF] = seen + 1
	switch seen {
	case 0:
		next.distinct++
	case 1:
		next.recurring++
	}

	e.current.Store(&next)
}

// Resync discards the running aggregate and re-folds every given record from
// scratch. It is the engine's only O(n) operation and exists solely for
// recovery after a detected delivery gap; it must never sit on the per-insert
// hot path.
//
// The rebuild holds the write lock but checks ctx periodically, so a caller
// superseding an in-flight resync cancels it and the stale result is
// discarded without ever being published.
func (e *Engine) Resync(ctx context.Context, records []models.FeedbackRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := aggregate{}
	seen := make(map[string]int, len(records))
	for n, record := range records {
		if n%resyncCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fresh.count++
		for i, v := range record.Scores.List() {
			fresh.sums[i] += v
		}
		fresh.histogram[record.RoundedAverage()-1]++
		switch seen[record.Customer.CPF] {
		case 0:
			fresh.distinct++
		case 1:
			fresh.recurring++
		}
		seen[record.Customer.CPF]++
	}

	e.cpfSeen = seen
	e.current.Store(&fresh)
	return nil
}
