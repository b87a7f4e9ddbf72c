package config

import "time"

// Period is an inclusive UTC date range, expressed as day boundaries.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days returns each UTC midnight in [Start, End], inclusive. An End
// before Start yields an empty slice, so a zero-length range replays
// nothing.
func (p Period) Days() []time.Time {
	if p.End.Before(p.Start) {
		return nil
	}
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ReportOptions controls how per-driver reports are collected and merged.
type ReportOptions struct {
	Parallelism int           // defaulted to 4 by Resolved; the backtest does not read it and runs every driver at once
	Compress    bool          // compress the written report
	SampleRate  time.Duration // carried through from config; the backtest does not read it and counts every tick
	Timeout     time.Duration // per-report collection window, 30s default
}

// StrategySettings is one driver's worth of configuration: which strategy
// factory to instantiate, its free-form parameters, and which channels it
// subscribes to.
type StrategySettings struct {
	Name     string
	Venue    string
	Pair     string
	Params   map[string]any
	Channels []ChannelSpec
}

// ChannelSpec mirrors the MarketChannel descriptor in config-friendly
// form.
type ChannelSpec struct {
	Symbol      string
	Type        string // trades|orderbooks|candles|quotes|quote_candles|open_interest
	TickRateMs  int64
	CandleResMs int64
	Depth       int
	OnlyFinal   bool
}

// BacktestConfig is the top-level structured configuration for a backtest
// run: period, per-strategy settings blocks, report options, output
// directory, runner queue size, optional sample rate.
type BacktestConfig struct {
	Period          Period
	Strategies      []StrategySettings
	Report          ReportOptions
	OutputDir       string
	RunnerQueueSize int
}

// Resolved returns a copy with TRADAI_BACKTESTS_OUT_DIR applied and sane
// defaults filled in for missing keys.
func (c BacktestConfig) Resolved() BacktestConfig {
	out := c
	out.OutputDir = BacktestsOutDir(c.OutputDir)
	if out.RunnerQueueSize <= 0 {
		out.RunnerQueueSize = 256
	}
	if out.Report.Timeout <= 0 {
		out.Report.Timeout = 30 * time.Second
	}
	if out.Report.Parallelism <= 0 {
		out.Report.Parallelism = 4
	}
	return out
}
