package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"avalia/internal/aggregate"
	"avalia/internal/export"
	"avalia/internal/feedback/metrics"
	"avalia/internal/feedback/models"
	"avalia/internal/feedback/store"
	"avalia/internal/storage"
	"avalia/internal/view"

	dErrors "avalia/pkg/domain-errors"
	"avalia/pkg/platform/circuit"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mocks.go -package=mocks

var tracer = otel.Tracer("avalia/internal/feedback/service")

// Publisher notifies peer instances about a durably inserted record.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// StatsCache mirrors statistics snapshots to an external cache.
type StatsCache interface {
	Set(ctx context.Context, stats aggregate.Statistics) error
}

// Engine is the statistics side the service reads from.
type Engine interface {
	Snapshot() aggregate.Statistics
}

// Service orchestrates the write path (validate, durable insert, working-set
// append, peer notification) and the dashboard read paths. It keeps
// orchestration out of handlers and domain logic thin.
type Service struct {
	durable    storage.Store
	records    store.RecordStore
	engine     Engine
	publisher  Publisher // nil when the live feed is disabled
	cache      StatsCache // nil when Redis is not configured
	logger     *slog.Logger
	metrics    *metrics.Metrics
	pubBreaker *circuit.Breaker
}

// publishProbeTimeout caps publish attempts while the publisher circuit is
// open, so a dead broker cannot stall the submit path.
const publishProbeTimeout = time.Second

// New creates a Service. publisher, cache, and metrics may be nil.
func New(durable storage.Store, records store.RecordStore, engine Engine, publisher Publisher, cache StatsCache, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		durable:    durable,
		records:    records,
		engine:     engine,
		publisher:  publisher,
		cache:      cache,
		logger:     logger,
		metrics:    m,
		pubBreaker: circuit.New("publisher", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
}

// SubmitRequest is a well-formed submission from the input collaborator.
type SubmitRequest struct {
	Customer models.Customer `json:"customer"`
	Scores   models.Scores   `json:"scores"`
	Comment  string          `json:"comment"`
}

// Submit validates a submission, persists it durably (which assigns ID and
// CreatedAt), folds it into the working set, and best-effort fans it out to
// peers and the snapshot cache. Fan-out failures are logged, never surfaced:
// the record is already accepted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (models.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "feedback.Submit", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	candidate := models.FeedbackRecord{
		Customer: req.Customer,
		Scores:   req.Scores,
		Comment:  req.Comment,
	}
	// Validate before touching durable storage; the store would reject the
	// record anyway, but an invalid row must never be persisted.
	if err := candidate.Validate(); err != nil {
		s.metrics.IncrementRejected("invalid")
		span.RecordError(err)
		return models.FeedbackRecord{}, err
	}

	stored, err := s.durable.Insert(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		return models.FeedbackRecord{}, dErrors.New(dErrors.CodeUnavailable, "persisting feedback failed")
	}

	if err := s.records.Append(stored); err != nil {
		// The durable insert succeeded; a working-set failure here means the
		// stored ID collided, which only happens on upstream corruption.
		span.RecordError(err)
		return models.FeedbackRecord{}, err
	}

	s.fanOut(ctx, stored)
	return stored, nil
}

// fanOut publishes the accepted record to peers and refreshes the statistics
// snapshot cache. Both are best effort.
func (s *Service) fanOut(ctx context.Context, record models.FeedbackRecord) {
	if s.publisher != nil {
		s.publish(ctx, record)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.engine.Snapshot()); err != nil {
			s.logger.WarnContext(ctx, "refreshing stats cache failed", "error", err)
		}
	}
}

// publish sends the record-inserted event, tracked by a circuit breaker.
// While the circuit is open each attempt becomes a short probe so a dead
// broker cannot stall submissions; successful probes close the circuit again.
func (s *Service) publish(ctx context.Context, record models.FeedbackRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.ErrorContext(ctx, "encoding record event failed",
			"record_id", record.ID, "error", err)
		return
	}

	open := s.pubBreaker.IsOpen()
	if open {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishProbeTimeout)
		defer cancel()
	}

	if err := s.publisher.Publish(ctx, record.ID, payload); err != nil {
		_, change := s.pubBreaker.RecordFailure()
		switch {
		case change.Opened:
			s.logger.ErrorContext(ctx, "publisher circuit opened", "error", err)
		case open:
			s.logger.DebugContext(ctx, "publish probe failed",
				"record_id", record.ID, "error", err)
		default:
			s.logger.WarnContext(ctx, "publishing record event failed",
				"record_id", record.ID, "error", err)
		}
		return
	}
	if _, change := s.pubBreaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "publisher circuit closed")
	}
}

// List returns the filtered, sorted projection of the current record set.
func (s *Service) List(ctx context.Context, filter view.Filter, key view.SortKey) []models.FeedbackRecord {
	return view.Project(s.records.All(), filter, key)
}

// Stats returns the current statistics snapshot.
func (s *Service) Stats(ctx context.Context) aggregate.Statistics {
	return s.engine.Snapshot()
}

// ExportCSV streams the projection as delimited text.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter view.Filter, key view.SortKey) error {
	if err := export.Write(w, view.Project(s.records.All(), filter, key), nil); err != nil {
		return err
	}
	s.metrics.IncrementExports()
	return nil
}

// Load performs the startup bulk read: every durable record is appended into
// the working set, folding the aggregate as it goes. Conflicting rows abort
// the load; they mean the durable store itself is corrupt.
func (s *Service) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "feedback.Load")
	defer span.End()

	stored, err := s.durable.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, record := range stored {
		if err := s.records.Append(record); err != nil {
			if errors.Is(err, store.ErrDuplicateConflict) {
				span.RecordError(err)
				return err
			}
			s.logger.WarnContext(ctx, "skipping invalid durable record",
				"record_id", record.ID, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "working set loaded", "records", s.records.Count())
	return nil
}
