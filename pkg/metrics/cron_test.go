package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	const job = "ledger-drift-audit"

	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, time.Second, errors.New("boom"))
	m.ObserveRun(job, time.Second, fmt.Errorf("audit: %w", context.DeadlineExceeded))

	for _, outcome := range []string{CronOutcomeOK, CronOutcomeError, CronOutcomeTimeout} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, outcome)), outcome)
	}
	assert.Equal(t, 1_800_000_000.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)))

	hist := sample(t, reg, "fuelops_cron_job_duration_seconds", map[string]string{"job": job}).GetHistogram()
	assert.Equal(t, uint64(3), hist.GetSampleCount())
	assert.InDelta(t, 2.25, hist.GetSampleSum(), 1e-9)
}

func TestCronJobMetricsLabelsBlankJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("", time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", CronOutcomeOK)))
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("job", time.Second, nil)
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, errors.New("boom"))
}
