package credit

import "github.com/prometheus/client_golang/prometheus"

var (
	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roleplay_credit_ledger_operations_total",
			Help: "Credit ledger operations by reason and outcome.",
		},
		[]string{"reason", "outcome"},
	)
	ledgerRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roleplay_credit_ledger_retries_total",
			Help: "Balance updates retried after losing a concurrent write.",
		},
	)
)

func init() {
	prometheus.MustRegister(ledgerOperations, ledgerRetries)
}

func observe(reason Reason, outcome string) {
	ledgerOperations.WithLabelValues(string(reason), outcome).Inc()
}
