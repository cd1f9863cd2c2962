// Package metrics provides Prometheus metrics for the synchronizer, the
// confirmation queue and purchases.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Synchronizer metrics
	PollCycles        *prometheus.CounterVec
	PollDuration      prometheus.Histogram
	AccountsTracked   prometheus.Gauge
	BlockNumber       prometheus.Gauge
	ContractMismatch  prometheus.Gauge
	ContractPhase     prometheus.Gauge
	TotalSupply       prometheus.Gauge
	LastSuccessfulRun prometheus.Gauge

	// Confirmation queue metrics
	PendingTransactions   prometheus.Gauge
	TransactionsCompleted *prometheus.CounterVec
	MinerToggles          *prometheus.CounterVec

	// Purchase metrics
	Purchases *prometheus.CounterVec

	// Node metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "sift"
	}
	factory := promauto.With(reg)

	return &Metrics{
		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "poll_cycles_total",
			Help:      "Total number of chain poll cycles by result",
		}, []string{"result"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a chain poll cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		AccountsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "accounts_tracked",
			Help:      "Number of wallet accounts in the account table",
		}),
		BlockNumber: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "block_number",
			Help:      "Latest block number reported by the node",
		}),
		ContractMismatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "contract_mismatch",
			Help:      "1 when a deployed contract version differs from the expected one",
		}),
		ContractPhase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "contract_phase",
			Help:      "Contract phase: 0 unknown, 1 ico, 2 trading",
		}),
		TotalSupply: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "token_total_supply",
			Help:      "Token total supply",
		}),
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "synchronizer",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll cycle",
		}),

		PendingTransactions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "pending_transactions",
			Help:      "Transactions awaiting a receipt",
		}),
		TransactionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "transactions_completed_total",
			Help:      "Transactions that reached a terminal state, by state",
		}, []string{"state"}),
		MinerToggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "miner_toggles_total",
			Help:      "Local miner start/stop attempts by action and result",
		}, []string{"action", "result"}),

		Purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "purchases_total",
			Help:      "Purchase attempts by outcome",
		}, []string{"outcome"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "rpc_call_latency_seconds",
			Help:      "Node RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "rpc_call_errors_total",
			Help:      "Node RPC call errors by method",
		}, []string{"method"}),
	}
}

// NewTestMetrics returns metrics bound to a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "test")
}
