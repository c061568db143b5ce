package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CronOutcomeOK      = "ok"
	CronOutcomeError   = "error"
	CronOutcomeTimeout = "timeout"
)

// CronJobMetrics tracks scheduled job runs. A nil value records nothing.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fuelops_cron_job_duration_seconds",
		Help: "Duration of cron jobs in seconds.",
		// drift audits over large books run for minutes
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fuelops_cron_job_runs_total",
		Help: "Cron job executions by outcome.",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fuelops_cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per job.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &CronJobMetrics{
		duration:    duration,
		runs:        runs,
		lastSuccess: lastSuccess,
		now:         time.Now,
	}
}

// ObserveRun records one execution of job. Deadline errors count as timeouts.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	outcome := cronOutcome(err)
	c.runs.WithLabelValues(job, outcome).Inc()
	if outcome == CronOutcomeOK {
		c.lastSuccess.WithLabelValues(job).Set(float64(c.now().Unix()))
	}
}

func cronOutcome(err error) string {
	switch {
	case err == nil:
		return CronOutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return CronOutcomeTimeout
	default:
		return CronOutcomeError
	}
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
