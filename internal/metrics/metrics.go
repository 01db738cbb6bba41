package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twister_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	DBConnectionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twister_db_connection_open",
		Help: "Number of open database connections",
	})

	DBConnectionInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twister_db_connection_in_use",
		Help: "Number of database connections in use",
	})

	// ============================================
	// NATS
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twister_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"event_type", "result"},
	)

	// ============================================
	// Leaf ledger
	// ============================================
	LedgerLeafCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twister_ledger_leaf_count",
		Help: "Number of commitments recorded in the local leaf ledger",
	})

	LedgerSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_ledger_sync_total",
			Help: "Total number of ledger sync runs",
		},
		[]string{"source", "result"},
	)

	LedgerSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twister_ledger_sync_duration_seconds",
			Help:    "Ledger sync duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ============================================
	// Operations
	// ============================================
	OperationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_operation_transitions_total",
			Help: "Total number of coordinator state transitions",
		},
		[]string{"kind", "state"},
	)

	OperationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_operations_skipped_total",
			Help: "Operations ignored because another one was in flight",
		},
		[]string{"kind"},
	)

	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_operation_failures_total",
			Help: "Failed operations by error class",
		},
		[]string{"kind", "error_code"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twister_operation_duration_seconds",
			Help:    "End-to-end operation duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "result"},
	)

	// ============================================
	// Prover
	// ============================================
	ProverRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twister_prover_request_duration_seconds",
			Help:    "Proof generation duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	ProverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twister_prover_requests_total",
			Help: "Total number of proof requests",
		},
		[]string{"backend", "result"},
	)

	// ============================================
	// Wallet
	// ============================================
	WalletBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twister_wallet_balance_wei",
			Help: "Balance of the submitting wallet",
		},
		[]string{"network", "address"},
	)
)
