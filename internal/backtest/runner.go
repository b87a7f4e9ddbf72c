package backtest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/dataset"
	"github.com/tradai/core/internal/driver"
	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/orders"
	"github.com/tradai/core/internal/pairs"
	"github.com/tradai/core/internal/portfolio"
	"github.com/tradai/core/internal/strategy"
)

// Runner is one strategy instance's slice of a backtest: its Driver, the
// Order Manager it trades through, and the raw event counters a
// BacktestReport is built from.
type Runner struct {
	settings config.StrategySettings
	driver   *driver.Driver
	manager  *orders.Manager

	ticks        atomic.Int64
	finalCandles atomic.Int64
	trades       atomic.Int64

	sinks    []market.Sink
	inflight atomic.Int64
	handleMu sync.Mutex // one HandleEvent at a time across this runner's sinks
}

// NewRunner builds a Runner from one strategy-settings record: resolves
// its Strategy via the registry, opens its own wal/orders pebble stores
// under dataDir, and wires a dry-run Order Manager for its venue.
func NewRunner(settings config.StrategySettings, dataDir string, registry *pairs.Registry, fc config.Config) (*Runner, error) {
	factory, ok := strategy.Lookup(settings.Name)
	if !ok {
		return nil, errs.Wrap(fmt.Errorf("%q: %w", settings.Name, errs.ErrUnknownStrategy), "backtest")
	}
	strat, err := factory(settings.Params)
	if err != nil {
		return nil, err
	}

	walStore, err := kv.Open("wal", filepath.Join(dataDir, settings.Venue, "wal"))
	if err != nil {
		return nil, err
	}
	ordersStore, err := kv.Open("orders", filepath.Join(dataDir, settings.Venue, "orders"))
	if err != nil {
		return nil, err
	}
	manager := orders.NewManager(settings.Venue, mockAdapter{venue: settings.Venue}, registry, walStore, ordersStore, true)
	go manager.Run()

	pf := portfolio.New(settings.Venue, fc.InitialEquityUSD, fc.FeesRate, fc.RiskThreshold, nil, nil, nil)
	d := driver.New(strat, pf, driver.MapEngine{settings.Venue: manager})

	return &Runner{settings: settings, driver: d, manager: manager}, nil
}

// Channels returns every dataset channel this runner's strategy needs,
// annotated with the venue to read from the catalog.
func (r *Runner) Channels() []dataset.ChannelRequest {
	out := make([]dataset.ChannelRequest, 0, len(r.settings.Channels))
	for _, spec := range r.settings.Channels {
		out = append(out, dataset.ChannelRequest{
			Venue:   r.settings.Venue,
			Symbol:  spec.Symbol,
			Channel: specToMarketChannel(spec),
		})
	}
	return out
}

func specToMarketChannel(spec config.ChannelSpec) market.MarketChannel {
	ch := market.MarketChannel{
		Symbol:    spec.Symbol,
		Type:      market.ChannelType(spec.Type),
		OnlyFinal: spec.OnlyFinal,
	}
	if spec.TickRateMs > 0 {
		d := time.Duration(spec.TickRateMs) * time.Millisecond
		ch.TickRate = &d
	}
	if spec.CandleResMs > 0 {
		d := time.Duration(spec.CandleResMs) * time.Millisecond
		ch.CandleResolution = &d
	}
	if spec.Depth > 0 {
		ch.OrderbookDepth = &spec.Depth
	}
	return ch
}

// Subscribe wires this runner's driver to broker and starts counting
// every delivered envelope toward its report.
func (r *Runner) Subscribe(ctx context.Context, broker *market.Broker, bufSize int) {
	go r.driver.Run()
	for _, ch := range r.driver.StrategyChannels() {
		sink := broker.Subscribe(ch.Topic(), bufSize)
		r.sinks = append(r.sinks, sink)
		go r.pump(ctx, sink)
	}
}

func (r *Runner) pump(ctx context.Context, sink market.Sink) {
	for e := range sink {
		r.inflight.Add(1)
		r.ticks.Add(1)
		if e.TradeCandle != nil && e.TradeCandle.IsFinal {
			r.finalCandles.Add(1)
		}
		if e.Trade != nil {
			r.trades.Add(1)
		}
		r.handleMu.Lock()
		r.driver.HandleEvent(ctx, e)
		r.handleMu.Unlock()
		r.inflight.Add(-1)
	}
}

// Pending reports how many envelopes are still buffered in this runner's
// sinks or being actively processed, used by the backtest orchestrator to
// know when it is safe to collect a final report.
func (r *Runner) Pending() int {
	n := int(r.inflight.Load())
	for _, s := range r.sinks {
		n += len(s)
	}
	return n
}

// Stop halts the runner's driver and Order Manager.
func (r *Runner) Stop() {
	r.driver.Stop()
	r.manager.Stop()
}

// Report snapshots this runner's accumulated counters and final portfolio
// state into a BacktestReport.
func (r *Runner) Report() BacktestReport {
	pf := r.driver.Portfolio()
	return BacktestReport{
		StrategyName:  r.driver.StrategyName(),
		Venue:         r.settings.Venue,
		Ticks:         int(r.ticks.Load()),
		FinalCandles:  int(r.finalCandles.Load()),
		Trades:        int(r.trades.Load()),
		FinalValue:    pf.Value(),
		FinalPnL:      pf.PnL(),
		OpenPositions: len(pf.OpenPositions()),
	}
}
