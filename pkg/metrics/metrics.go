package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Balance-moving operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LedgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_amount_total",
			Help: "Absolute amount moved by committed operations",
		},
		[]string{"operation"},
	)

	WithdrawalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_withdrawal_transitions_total",
			Help: "Withdrawal status changes by target status",
		},
		[]string{"status"},
	)

	SettlementInvoicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlement_invoices_total",
			Help: "Invoices created by settlement jobs",
		},
		[]string{"type"},
	)

	SettlementGroupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlement_group_failures_total",
			Help: "Settlement groups rolled back",
		},
		[]string{"job"},
	)

	SettlementSkippedParcelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlement_skipped_parcels_total",
			Help: "Parcels skipped because they were already invoiced",
		},
		[]string{"job"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordLedgerOperation counts one operation; amount is only added on success.
func RecordLedgerOperation(operation string, err error, amount decimal.Decimal) {
	if err != nil {
		LedgerOperationsTotal.WithLabelValues(operation, "error").Inc()
		return
	}
	LedgerOperationsTotal.WithLabelValues(operation, "ok").Inc()
	f, _ := amount.Abs().Float64()
	LedgerAmountTotal.WithLabelValues(operation).Add(f)
}

func RecordWithdrawalTransition(status string) {
	WithdrawalTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordSettlement(job string, invoicesByType map[string]int, skipped, failed int) {
	for typ, n := range invoicesByType {
		SettlementInvoicesTotal.WithLabelValues(typ).Add(float64(n))
	}
	SettlementSkippedParcelsTotal.WithLabelValues(job).Add(float64(skipped))
	SettlementGroupFailuresTotal.WithLabelValues(job).Add(float64(failed))
}
