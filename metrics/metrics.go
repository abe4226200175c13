// Package metrics exposes the core's Prometheus collectors. Metrics are
// process-wide state initialized at import time and torn down only on
// process exit (design note §9's exception for truly process-scoped
// state), as is the `logging` package's default logger — the other shared
// state in the core (rate cache, provider stats) is passed explicitly at
// construction instead.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order Manager

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcore_orders_total",
			Help: "Total orders by type and terminal status",
		},
		[]string{"order_type", "status"},
	)

	orderBookDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcore_order_book_depth",
			Help: "Resting order count per pair and side",
		},
		[]string{"pair", "side"},
	)

	reservationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcore_reservation_failures_total",
			Help: "Account Manager reservation failures by reason",
		},
		[]string{"reason"},
	)

	orderExpirySweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxcore_order_expiry_sweep_duration_milliseconds",
			Help:    "Duration of each 60s expiry sweep pass",
			Buckets: []float64{0.5, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	// Execution Engine

	executionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxcore_execution_latency_milliseconds",
			Help:    "Time from Execute() to executionCompleted/timeout",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 15000, 30000},
		},
		[]string{"algorithm"},
	)

	sliceFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcore_slice_fills_total",
			Help: "Total provider slice fills by provider and outcome",
		},
		[]string{"provider_id", "outcome"},
	)

	providerScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcore_provider_score",
			Help: "Most recent composite routing score computed for a provider",
		},
		[]string{"provider_id"},
	)

	priceImprovementBps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxcore_price_improvement_bps",
			Help:    "Signed price improvement per fill, in basis points",
			Buckets: []float64{-50, -10, -1, 0, 1, 10, 50, 100},
		},
		[]string{"pair"},
	)

	// Settlement Engine

	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcore_settlements_total",
			Help: "Total settlements by cycle and terminal status",
		},
		[]string{"cycle", "status"},
	)

	nettingBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxcore_netting_batch_size",
			Help:    "Number of settlements folded into a netting batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"counterparty_id"},
	)

	settlementRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcore_settlement_retries_total",
			Help: "Settlement leg retry attempts",
		},
		[]string{"reason"},
	)

	// Analytics Engine

	positionCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxcore_open_positions",
			Help: "Current number of open (non-flat) positions across all users",
		},
	)

	unrealizedPnLStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxcore_unrealized_pnl_stale_total",
			Help: "Revaluation ticks that carried forward a stale rate",
		},
	)

	dailyReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxcore_daily_report_duration_milliseconds",
			Help:    "Time to build the end-of-day report",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		},
	)
)

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOrderTerminal records an order reaching a terminal status.
func RecordOrderTerminal(orderType, status string) {
	ordersTotal.WithLabelValues(orderType, status).Inc()
}

// SetOrderBookDepth publishes the current resting-order count for a pair/side.
func SetOrderBookDepth(pair, side string, depth int) {
	orderBookDepth.WithLabelValues(pair, side).Set(float64(depth))
}

// RecordReservationFailure records a refused Account Manager reservation.
func RecordReservationFailure(reason string) {
	reservationFailures.WithLabelValues(reason).Inc()
}

// ObserveExpirySweep records one expiry sweep pass duration.
func ObserveExpirySweep(ms float64) {
	orderExpirySweepDuration.Observe(ms)
}

// ObserveExecutionLatency records an execution context's total lifetime.
func ObserveExecutionLatency(algorithm string, ms float64) {
	executionLatency.WithLabelValues(algorithm).Observe(ms)
}

// RecordSliceFill records one provider slice outcome ("filled", "rejected_slippage", "error").
func RecordSliceFill(providerID, outcome string) {
	sliceFills.WithLabelValues(providerID, outcome).Inc()
}

// SetProviderScore publishes the most recent composite score for a provider.
func SetProviderScore(providerID string, score float64) {
	providerScore.WithLabelValues(providerID).Set(score)
}

// ObservePriceImprovement records signed price improvement in bps.
func ObservePriceImprovement(pair string, bps float64) {
	priceImprovementBps.WithLabelValues(pair).Observe(bps)
}

// RecordSettlementTerminal records a settlement reaching settled/failed/rejected.
func RecordSettlementTerminal(cycle, status string) {
	settlementsTotal.WithLabelValues(cycle, status).Inc()
}

// ObserveNettingBatchSize records how many settlements a batch folded together.
func ObserveNettingBatchSize(counterpartyID string, n int) {
	nettingBatchSize.WithLabelValues(counterpartyID).Observe(float64(n))
}

// RecordSettlementRetry records a scheduled settlement retry.
func RecordSettlementRetry(reason string) {
	settlementRetries.WithLabelValues(reason).Inc()
}

// SetPositionCount publishes the current open-position count.
func SetPositionCount(n int) {
	positionCount.Set(float64(n))
}

// RecordStalePnL records a revaluation tick that had to carry forward a stale rate.
func RecordStalePnL() {
	unrealizedPnLStaleTotal.Inc()
}

// ObserveDailyReport records how long end-of-day report generation took.
func ObserveDailyReport(ms float64) {
	dailyReportDuration.Observe(ms)
}
