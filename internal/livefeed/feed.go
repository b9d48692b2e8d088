// Package livefeed bridges the external record-inserted notification stream
// into the in-memory record store. Delivery is at least once and unordered;
// duplicates are absorbed by the store's idempotency rule, and explicit gap
// signals trigger a full aggregate resync.
package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"avalia/internal/feedback/metrics"
	"avalia/internal/feedback/models"
	"avalia/internal/feedback/store"
)

var tracer = otel.Tracer("avalia/internal/livefeed")

// Records is the slice of the record store the feed writes to.
type Records interface {
	Append(record models.FeedbackRecord) error
	Rebuild(fn func(records []models.FeedbackRecord) error) error
}

// Engine is the aggregate rebuild entry point used for gap recovery.
type Engine interface {
	Resync(ctx context.Context, records []models.FeedbackRecord) error
}

// Loader is the durable bulk-read used to recover records the transport may
// have dropped.
type Loader interface {
	ListAll(ctx context.Context) ([]models.FeedbackRecord, error)
}

// Feed applies insert notifications and coordinates gap recovery. A gap
// arriving while a recovery is still running supersedes it: the in-flight
// rebuild is cancelled and its result discarded.
type Feed struct {
	records Records
	engine  Engine
	loader  Loader
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	cancelResync context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a feed. metrics may be nil.
func New(records Records, engine Engine, loader Loader, logger *slog.Logger, m *metrics.Metrics) *Feed {
	return &Feed{records: records, engine: engine, loader: loader, logger: logger, metrics: m}
}

// HandleMessage decodes one transport payload and applies it. A payload that
// cannot be decoded is an error for the transport to log; everything after
// decoding is absorbed here.
func (f *Feed) HandleMessage(ctx context.Context, payload []byte) error {
	var record models.FeedbackRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return fmt.Errorf("decode record event: %w", err)
	}
	f.OnInsert(ctx, record)
	return nil
}

// OnInsert appends a notified record. Redelivery of an already-stored record
// is a silent no-op; a conflicting payload under a known ID signals upstream
// corruption and is logged, not applied.
func (f *Feed) OnInsert(ctx context.Context, record models.FeedbackRecord) {
	err := f.records.Append(record)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateConflict):
		f.logger.ErrorContext(ctx, "conflicting payload for stored record, dropping",
			"record_id", record.ID)
		f.metrics.IncrementRejected("conflict")
	default:
		f.logger.WarnContext(ctx, "invalid record from live feed, dropping",
			"record_id", record.ID, "error", err)
		f.metrics.IncrementRejected("invalid")
	}
}

// OnGap recovers from a possible missed delivery: re-read everything from
// durable storage, append whatever the store is missing, then rebuild the
// aggregate from the store's full content. Runs in the background so the
// consumer keeps draining; a newer gap cancels the previous recovery.
func (f *Feed) OnGap(ctx context.Context) {
	f.mu.Lock()
	if f.cancelResync != nil {
		f.cancelResync()
	}
	resyncCtx, cancel := context.WithCancel(ctx)
	f.cancelResync = cancel
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.recover(resyncCtx)
	}()
}

// Wait blocks until any in-flight recovery finishes. Used in shutdown and
// tests.
func (f *Feed) Wait() {
	f.wg.Wait()
}

func (f *Feed) recover(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "livefeed.Recover")
	defer span.End()
	start := time.Now()

	stored, err := f.loader.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		f.logger.ErrorContext(ctx, "gap recovery: durable read failed", "error", err)
		return
	}
	for _, record := range stored {
		f.OnInsert(ctx, record)
	}

	// Rebuild under the store's write lock: a record appended after an
	// unsynchronized snapshot would have its fold overwritten by the rebuild.
	err = f.records.Rebuild(func(records []models.FeedbackRecord) error {
		return f.engine.Resync(ctx, records)
	})
	switch {
	case err == nil:
		f.metrics.ObserveResync(time.Since(start))
		f.logger.InfoContext(ctx, "gap recovery: aggregate resynced",
			"records", len(stored), "duration_ms", time.Since(start).Milliseconds())
	case errors.Is(err, context.Canceled):
		f.logger.DebugContext(ctx, "gap recovery superseded")
	default:
		span.RecordError(err)
		f.logger.ErrorContext(ctx, "gap recovery: resync failed", "error", err)
	}
}
