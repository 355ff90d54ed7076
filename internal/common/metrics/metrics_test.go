package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveJob(t *testing.T) {
	completed := testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues("generate-diagnostic"))
	failed := testutil.ToFloat64(WorkerJobsFailed.WithLabelValues("generate-diagnostic", "VALIDATION_FAILED"))

	ObserveJob("generate-diagnostic", time.Now(), "")
	ObserveJob("generate-diagnostic", time.Now(), "VALIDATION_FAILED")
	ObserveJob("generate-diagnostic", time.Now(), "VALIDATION_FAILED")

	assert.Equal(t, completed+1, testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues("generate-diagnostic")))
	assert.Equal(t, failed+2, testutil.ToFloat64(WorkerJobsFailed.WithLabelValues("generate-diagnostic", "VALIDATION_FAILED")))
}

func TestObserveBenchmark(t *testing.T) {
	available := testutil.ToFloat64(BenchmarkLookups.WithLabelValues("available"))
	insufficient := testutil.ToFloat64(BenchmarkLookups.WithLabelValues("insufficient"))

	ObserveBenchmark(true)
	ObserveBenchmark(false)

	assert.Equal(t, available+1, testutil.ToFloat64(BenchmarkLookups.WithLabelValues("available")))
	assert.Equal(t, insufficient+1, testutil.ToFloat64(BenchmarkLookups.WithLabelValues("insufficient")))
}
