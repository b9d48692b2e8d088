package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the feedback module.
type Metrics struct {
	// Accepted/rejected submissions and absorbed redeliveries
	RecordsAccepted   prometheus.Counter
	RecordsRejected   *prometheus.CounterVec
	DuplicatesDropped prometheus.Counter

	// Gap-recovery resyncs and their cost
	Resyncs        prometheus.Counter
	ResyncDuration prometheus.Histogram

	// CSV exports served
	Exports prometheus.Counter
}

// New creates a new Metrics instance with all feedback module metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avalia_feedback_records_accepted_total",
			Help: "Total feedback records accepted into the working set",
		}),
		RecordsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avalia_feedback_records_rejected_total",
			Help: "Total rejected submissions by reason",
		}, []string{"reason"}), // reason: "invalid", "conflict"
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avalia_feedback_duplicates_dropped_total",
			Help: "Total redelivered records absorbed as idempotent no-ops",
		}),
		Resyncs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avalia_feedback_resyncs_total",
			Help: "Total aggregate rebuilds triggered by delivery gaps",
		}),
		ResyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "avalia_feedback_resync_duration_seconds",
			Help:    "Duration of full aggregate rebuilds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Exports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avalia_feedback_exports_total",
			Help: "Total CSV exports served",
		}),
	}
}

// IncrementAccepted records an accepted submission.
func (m *Metrics) IncrementAccepted() {
	if m != nil {
		m.RecordsAccepted.Inc()
	}
}

// IncrementRejected records a rejected submission.
func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.RecordsRejected.WithLabelValues(reason).Inc()
	}
}

// IncrementDuplicates records an absorbed redelivery.
func (m *Metrics) IncrementDuplicates() {
	if m != nil {
		m.DuplicatesDropped.Inc()
	}
}

// ObserveResync records one aggregate rebuild.
func (m *Metrics) ObserveResync(d time.Duration) {
	if m != nil {
		m.Resyncs.Inc()
		m.ResyncDuration.Observe(d.Seconds())
	}
}

// IncrementExports records one served export.
func (m *Metrics) IncrementExports() {
	if m != nil {
		m.Exports.Inc()
	}
}
