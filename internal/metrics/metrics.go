// Package metrics registers the Prometheus series the core updates.
// Exposing them over HTTP is a deployment concern; this package only
// defines and mutates the series.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OrdersStaged counts staged orders per venue.
	OrdersStaged = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_orders_staged_total", Help: "Orders staged per venue."},
		[]string{"venue"},
	)

	// OrdersByStatus counts registered order transactions per venue and
	// transaction kind (staged, new, fills and rejections alike).
	OrdersByStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_orders_total", Help: "Orders by venue and resulting status."},
		[]string{"venue", "status"},
	)

	// WALAppends counts kv.Store Put calls per store: WAL appends and
	// order/portfolio repository writes alike, labelled by store name.
	WALAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_wal_appends_total", Help: "kv store Put calls per store."},
		[]string{"store"},
	)

	// PortfolioEquity reports current cash value per portfolio key.
	PortfolioEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tradai_portfolio_equity", Help: "Portfolio cash value."},
		[]string{"portfolio"},
	)

	// OpenPositions reports the number of open positions per portfolio.
	OpenPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tradai_open_positions", Help: "Open position count."},
		[]string{"portfolio"},
	)

	// SignalsEmitted counts strategy signals by position kind (long/short).
	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_signals_total", Help: "Trade signals emitted by strategies."},
		[]string{"strategy", "kind"},
	)

	// DriverDecisions counts driver-level outcomes per event.
	DriverDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_driver_decisions_total", Help: "Driver outcomes per market event."},
		[]string{"strategy", "outcome"},
	)

	// BacktestReports counts completed backtest report generations.
	BacktestReports = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tradai_backtest_reports_total", Help: "Completed backtest reports."},
	)

	// BrokerSinkSaturations counts publish attempts rejected due to a full sink.
	BrokerSinkSaturations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradai_broker_sink_saturations_total", Help: "Publishes that hit a full subscriber sink."},
		[]string{"topic"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersStaged, OrdersByStatus, WALAppends,
		PortfolioEquity, OpenPositions,
		SignalsEmitted, DriverDecisions, BacktestReports,
		BrokerSinkSaturations,
	)
}
