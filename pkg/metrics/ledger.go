package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics tracks write-path outcomes, drift audits and recovery runs.
type LedgerMetrics struct {
	writes        *prometheus.CounterVec
	retries       *prometheus.CounterVec
	driftAccounts prometheus.Gauge
	driftFound    prometheus.Counter
	recovered     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics. A nil registerer yields a
// no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelops_ledger_writes_total",
			Help: "Ledger write attempts by entry direction and outcome.",
		}, []string{"direction", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelops_ledger_write_retries_total",
			Help: "Ledger writes retried after an aggregate version conflict.",
		}, []string{"direction"}),
		driftAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fuelops_ledger_drift_accounts",
			Help: "Accounts whose aggregate disagreed with the entry log in the last audit.",
		}),
		driftFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuelops_ledger_drift_detected_total",
			Help: "Drifted aggregates detected across all audits.",
		}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelops_ledger_recovery_orders_total",
			Help: "Orders processed by auto-recovery by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.writes, m.retries, m.driftAccounts, m.driftFound, m.recovered)
	return m
}

func (m *LedgerMetrics) ObserveWrite(direction, outcome string) {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.WithLabelValues(normalizeLabel(direction), normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) IncRetry(direction string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(direction)).Inc()
}

// SetDrift records the drifted account count of a completed audit.
func (m *LedgerMetrics) SetDrift(count int) {
	if m == nil || m.driftAccounts == nil {
		return
	}
	m.driftAccounts.Set(float64(count))
	if count > 0 {
		m.driftFound.Add(float64(count))
	}
}

func (m *LedgerMetrics) AddRecovery(outcome string, n int) {
	if m == nil || m.recovered == nil || n <= 0 {
		return
	}
	m.recovered.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}
