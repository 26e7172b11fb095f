package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	PurchasesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchaser_purchases_total",
		Help: "The total number of completed purchase sessions by outcome",
	}, []string{"outcome"})

	PurchaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchaser_purchase_duration_seconds",
		Help:    "End to end time of a purchase session",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchaser_stage_duration_seconds",
		Help:    "Time spent per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	PurchaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchaser_errors_total",
		Help: "Total number of errors by kind",
	}, []string{"stage", "kind"})

	RetryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchaser_retry_count_total",
		Help: "The total number of stage retries by stage",
	}, []string{"stage"})

	CheckpointRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchaser_checkpoint_refreshes_total",
		Help: "Number of stale-checkpoint refresh-and-resign cycles",
	})

	BalanceChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchaser_balance_checks_total",
		Help: "Balance precondition checks by result",
	}, []string{"result"})

	SettlementReconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchaser_settlement_reconciliations_total",
		Help: "Confirmed purchases whose settlement call failed and need backend reconciliation",
	})

	ActiveSession = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "purchaser_active_session",
		Help: "Whether a purchase session is currently active (0 or 1)",
	})

	UncertainOutcomes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchaser_uncertain_outcomes_total",
		Help: "Sessions that ended with an unconfirmed, possibly-landed transaction",
	})
)
