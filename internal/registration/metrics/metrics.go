package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeExhausted   = "exhausted"
	OutcomeUnavailable = "unavailable"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the registration module.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	Submissions           *prometheus.CounterVec
	AllocationAttempts    prometheus.Histogram
	ReferenceCollisions   prometheus.Counter
	InsertRetries         prometheus.Counter
	MigrationColumnsAdded prometheus.Counter
	SubmitDuration        prometheus.Histogram
	RequestLatency        *prometheus.HistogramVec
}

// New registers the registration metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "formintake_submissions_total",
			Help: "Registration submissions by outcome",
		}, []string{"outcome"}),
		AllocationAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "formintake_reference_allocation_attempts",
			Help:    "Existence checks needed to allocate one reference code",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		ReferenceCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "formintake_reference_collisions_total",
			Help: "Candidate reference codes that were already taken",
		}),
		InsertRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "formintake_insert_retries_total",
			Help: "Inserts retried after a storage uniqueness conflict",
		}),
		MigrationColumnsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "formintake_migration_columns_added_total",
			Help: "Columns added by the startup migration",
		}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "formintake_submit_duration_seconds",
			Help:    "Duration of the submit workflow",
			Buckets: latencyBuckets,
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formintake_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: latencyBuckets,
		}, []string{"route", "method"}),
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveAllocationAttempts records how many existence checks an allocation took.
func (m *Metrics) ObserveAllocationAttempts(n int) {
	if m == nil {
		return
	}
	m.AllocationAttempts.Observe(float64(n))
}

func (m *Metrics) IncrementReferenceCollision() {
	if m == nil {
		return
	}
	m.ReferenceCollisions.Inc()
}

func (m *Metrics) IncrementInsertRetry() {
	if m == nil {
		return
	}
	m.InsertRetries.Inc()
}

func (m *Metrics) AddMigrationColumns(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MigrationColumnsAdded.Add(float64(n))
}

// ObserveSubmit records the duration of a submit call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveRequest records latency for a matched route.
func (m *Metrics) ObserveRequest(route, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
