package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records bank and code ledger activity.
type LedgerMetrics struct {
	transactions   *prometheus.CounterVec
	spendRejected  prometheus.Counter
	codeEvents     *prometheus.CounterVec
	redeemFailures *prometheus.CounterVec
	writes         *prometheus.CounterVec
	recoveries     *prometheus.CounterVec
	narration      *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_transactions_total",
		Help: "Bank transactions appended, by kind.",
	}, []string{"kind"})
	spendRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "careon_spend_rejected_total",
		Help: "Spends refused for insufficient balance.",
	})
	codeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_code_events_total",
		Help: "Deposit code ledger events, by type.",
	}, []string{"event"})
	redeemFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_redeem_failures_total",
		Help: "Failed code redemptions, by reason.",
	}, []string{"reason"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_document_writes_total",
		Help: "Ledger document writes, by document and result.",
	}, []string{"document", "result"})
	recoveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_document_recoveries_total",
		Help: "Ledger loads that fell back past the primary file, by source.",
	}, []string{"document", "source"})
	narration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "careon_narration_duration_seconds",
		Help:    "Duration of narrator calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(transactions, spendRejected, codeEvents, redeemFailures, writes, recoveries, narration)
	return &LedgerMetrics{
		transactions:   transactions,
		spendRejected:  spendRejected,
		codeEvents:     codeEvents,
		redeemFailures: redeemFailures,
		writes:         writes,
		recoveries:     recoveries,
		narration:      narration,
	}
}

func (m *LedgerMetrics) IncTransaction(kind string) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *LedgerMetrics) IncSpendRejected() {
	if m == nil || m.spendRejected == nil {
		return
	}
	m.spendRejected.Inc()
}

func (m *LedgerMetrics) IncCodeEvent(event string) {
	if m == nil || m.codeEvents == nil {
		return
	}
	m.codeEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *LedgerMetrics) IncRedeemFailure(reason string) {
	if m == nil || m.redeemFailures == nil {
		return
	}
	m.redeemFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveWrite counts a document write; err decides the result label.
func (m *LedgerMetrics) ObserveWrite(document string, err error) {
	if m == nil || m.writes == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(normalizeLabel(document), result).Inc()
}

// IncRecovery counts a load served from the backup or from defaults.
func (m *LedgerMetrics) IncRecovery(document, source string) {
	if m == nil || m.recoveries == nil {
		return
	}
	m.recoveries.WithLabelValues(normalizeLabel(document), normalizeLabel(source)).Inc()
}

func (m *LedgerMetrics) ObserveNarration(duration time.Duration, fallback bool) {
	if m == nil || m.narration == nil {
		return
	}
	result := "ok"
	if fallback {
		result = "fallback"
	}
	m.narration.WithLabelValues(result).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
