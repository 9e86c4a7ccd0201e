// Package metrics holds the Prometheus collectors the engine updates during
// operation:
//
//	zeroxbot_ticks_total{result}          price frames reaching the cache (changed|duplicate)
//	zeroxbot_decisions_total{action}      completed decision round-trips (BUY|SELL|WAIT)
//	zeroxbot_decisions_dropped_total      price changes dropped while the gate was busy
//	zeroxbot_decision_errors_total        oracle round-trips that failed
//	zeroxbot_decision_seconds             oracle round-trip latency
//	zeroxbot_orders_total{side,result}    order outcomes (placed|failed|skipped|dry_run)
//	zeroxbot_ws_reconnects_total          stream reconnect attempts
//	zeroxbot_ws_state                     0 disconnected, 1 connecting, 2 subscribed
//	zeroxbot_account_equity               last known account equity
//	zeroxbot_session_pnl                  equity delta since the session baseline
//	zeroxbot_snapshot_writes_total{result} snapshot publish outcomes (ok|error)
//
// They are registered in init() and served by Server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeroxbot_ticks_total",
			Help: "Valid price frames by cache outcome",
		},
		[]string{"result"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeroxbot_decisions_total",
			Help: "Decision round-trips by resulting action",
		},
		[]string{"action"},
	)

	DecisionsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeroxbot_decisions_dropped_total",
			Help: "Price changes dropped because a decision was in flight",
		},
	)

	DecisionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeroxbot_decision_errors_total",
			Help: "Decision round-trips that failed and were treated as WAIT",
		},
	)

	DecisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeroxbot_decision_seconds",
			Help:    "Decision oracle round-trip latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeroxbot_orders_total",
			Help: "Order submissions by side and outcome",
		},
		[]string{"side", "result"},
	)

	WSReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeroxbot_ws_reconnects_total",
			Help: "Market-data stream reconnect attempts",
		},
	)

	WSErrorEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeroxbot_ws_error_events_total",
			Help: "Error replies pushed by the market-data stream",
		},
	)

	WSState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeroxbot_ws_state",
			Help: "Stream connection state (0 disconnected, 1 connecting, 2 subscribed)",
		},
	)

	AccountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeroxbot_account_equity",
			Help: "Last known account equity in the margin coin",
		},
	)

	SessionPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeroxbot_session_pnl",
			Help: "Equity delta since the session baseline",
		},
	)

	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeroxbot_snapshot_writes_total",
			Help: "Snapshot publish cycles by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(Ticks, Decisions, DecisionsDropped, DecisionErrors, DecisionLatency)
	prometheus.MustRegister(Orders)
	prometheus.MustRegister(WSReconnects, WSErrorEvents, WSState)
	prometheus.MustRegister(AccountEquity, SessionPnL, SnapshotWrites)
}
