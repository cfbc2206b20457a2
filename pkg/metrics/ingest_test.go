package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestMetrics(reg)

	m.ObserveInvocation("ready", 2*time.Second)
	m.ObserveInvocation("upload_blocked", time.Second)
	m.ObserveInvocation("", time.Second)
	m.IncError("QUOTA_EXCEEDED")
	m.IncLessonWriteFailure("ready")
	m.IncDuplicate()
	m.IncDuplicate()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("QUOTA_EXCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lessonWrites.WithLabelValues("ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.duplicates))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "guruji_ingest_invocation_duration_seconds", "outcome", "ready")
	require.NoError(t, err)
	assert.Equal(t, 2.0, sum)
}

func TestIngestMetricsWithoutRegistry(t *testing.T) {
	m := NewIngestMetrics(nil)
	m.ObserveInvocation("ready", time.Second)
	m.IncError("AUTH_ERROR")
	m.IncLessonWriteFailure("failed")
	m.IncDuplicate()

	var nilMetrics *IngestMetrics
	nilMetrics.IncDuplicate()
}
