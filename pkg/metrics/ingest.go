package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics tracks video ingestion invocations.
type IngestMetrics struct {
	invocations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	lessonWrites *prometheus.CounterVec
	duplicates   prometheus.Counter
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	m := &IngestMetrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "invocations_total",
			Help:      "Ingest invocations by terminal outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of ingest invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Classified upload failures.",
		}, []string{"code"}),
		lessonWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "lesson_write_failures_total",
			Help:      "Lesson status writes that failed and were swallowed.",
		}, []string{"status"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duplicate_deliveries_total",
			Help:      "Storage notifications skipped as already processed.",
		}),
	}
	reg.MustRegister(m.invocations, m.duration, m.errors, m.lessonWrites, m.duplicates)
	return m
}

// ObserveInvocation records the outcome (skipped, ready, failed, upload_blocked)
// and duration of one invocation.
func (m *IngestMetrics) ObserveInvocation(outcome string, d time.Duration) {
	if m == nil || m.invocations == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.invocations.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *IngestMetrics) IncError(code string) {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *IngestMetrics) IncLessonWriteFailure(status string) {
	if m == nil || m.lessonWrites == nil {
		return
	}
	m.lessonWrites.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *IngestMetrics) IncDuplicate() {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.Inc()
}
