// Package backtest implements the Backtest Runner: spawn N driver
// instances from N strategy-settings records, wire their required
// channels into a shared Broker, feed the Dataset Reader over a date
// range, and collect per-driver reports with a timeout into one
// GlobalReport.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/dataset"
	"github.com/tradai/core/internal/logging"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/pairs"
)

// Backtest owns one run's runners, the shared Broker they publish into,
// and the Dataset Reader that feeds it.
type Backtest struct {
	cfg     config.BacktestConfig
	runners []*Runner
	catalog *dataset.Catalog
	log     *logging.Logger
}

// New builds a Backtest from a resolved BacktestConfig: one Runner per
// strategy-settings record, sharing a pair registry and a dataset
// catalog rooted at dataDir.
func New(cfg config.BacktestConfig, dataDir string, registry *pairs.Registry) (*Backtest, error) {
	cfg = cfg.Resolved()

	runners := make([]*Runner, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		r, err := NewRunner(s, dataDir, registry, config.Config{
			InitialEquityUSD: 10000,
			FeesRate:         0.001,
			RiskThreshold:    0.5,
		})
		if err != nil {
			return nil, fmt.Errorf("backtest: runner for %q: %w", s.Name, err)
		}
		runners = append(runners, r)
	}

	return &Backtest{
		cfg:     cfg,
		runners: runners,
		catalog: dataset.NewCatalog(dataDir, cfg.Report.Compress),
		log:     logging.New("backtest"),
	}, nil
}

// Run wires every runner's channels into a shared Broker, starts the
// runners, streams the dataset over the configured period, awaits every
// runner draining its backlog (bounded by the per-report timeout), and
// writes the aggregated GlobalReport.
func (b *Backtest) Run(ctx context.Context) (*GlobalReport, error) {
	broker := market.NewBroker()
	var channels []dataset.ChannelRequest
	for _, r := range b.runners {
		channels = append(channels, r.Channels()...)
		r.Subscribe(ctx, broker, b.cfg.RunnerQueueSize)
	}
	defer func() {
		for _, r := range b.runners {
			r.Stop()
		}
	}()

	reader := dataset.NewReader(b.catalog)
	before := time.Now()
	if err := reader.StreamWithBroker(ctx, channels, broker, b.cfg.Period); err != nil {
		return nil, fmt.Errorf("backtest: stream dataset: %w", err)
	}
	b.log.Infof("published all market events in %s, awaiting drain", time.Since(before))

	if err := b.awaitDrain(b.cfg.Report.Timeout); err != nil {
		b.log.Warnf("%v", err)
	}

	global := NewGlobalReport(b.cfg.OutputDir, b.cfg.Report.Compress)
	for _, r := range b.runners {
		global.Add(r.Report())
	}
	if err := global.Write(); err != nil {
		return nil, err
	}
	return global, nil
}

// awaitDrain blocks until every runner has processed its full backlog or
// timeout elapses: a runner whose Driver mailbox is stuck (e.g. a
// saturated Order Manager) never blocks the whole backtest past this
// window.
func (b *Backtest) awaitDrain(timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.allDrained() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("timed out after %s waiting for runners to drain", timeout)
		}
	}
}

func (b *Backtest) allDrained() bool {
	for _, r := range b.runners {
		if r.Pending() > 0 {
			return false
		}
	}
	return true
}
