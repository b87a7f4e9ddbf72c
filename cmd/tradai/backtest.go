package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradai/core/internal/backtest"
	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/pairs"
)

var (
	btConfigPath string
	btDataDir    string
	btPairsPath  string
)

var backtestCmd = &cobra.Command{
	Use:     "backtest",
	Aliases: []string{"bt"},
	Short:   "Replay a dataset catalog through one or more strategy drivers and write a report",
	Args:    cobra.NoArgs,
	RunE:    runBacktest,
}

// fileBacktestConfig is the on-disk JSON shape of a backtest run, a
// CLI-friendly mirror of config.BacktestConfig: plain date strings
// instead of time.Time, seconds/milliseconds instead of time.Duration,
// converted once at load time.
type fileBacktestConfig struct {
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Strategies []config.StrategySettings `json:"strategies"`
	Report     struct {
		Parallelism  int  `json:"parallelism"`
		Compress     bool `json:"compress"`
		SampleRateMs int  `json:"sample_rate_ms"`
		TimeoutSec   int  `json:"timeout_sec"`
	} `json:"report"`
	OutputDir       string `json:"output_dir"`
	RunnerQueueSize int    `json:"runner_queue_size"`
}

func (f fileBacktestConfig) toBacktestConfig() (config.BacktestConfig, error) {
	start, err := time.Parse("2006-01-02", f.Period.Start)
	if err != nil {
		return config.BacktestConfig{}, fmt.Errorf("period.start: %w", err)
	}
	end, err := time.Parse("2006-01-02", f.Period.End)
	if err != nil {
		return config.BacktestConfig{}, fmt.Errorf("period.end: %w", err)
	}
	return config.BacktestConfig{
		Period:     config.Period{Start: start, End: end},
		Strategies: f.Strategies,
		Report: config.ReportOptions{
			Parallelism: f.Report.Parallelism,
			Compress:    f.Report.Compress,
			SampleRate:  time.Duration(f.Report.SampleRateMs) * time.Millisecond,
			Timeout:     time.Duration(f.Report.TimeoutSec) * time.Second,
		},
		OutputDir:       f.OutputDir,
		RunnerQueueSize: f.RunnerQueueSize,
	}, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(btConfigPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", btConfigPath, err)
	}
	var fc fileBacktestConfig
	if err := kv.Decode(raw, &fc); err != nil {
		return fmt.Errorf("decode config %s: %w", btConfigPath, err)
	}
	cfg, err := fc.toBacktestConfig()
	if err != nil {
		return fmt.Errorf("config %s: %w", btConfigPath, err)
	}

	registry := pairs.New()
	if btPairsPath != "" {
		if err := loadPairsFile(btPairsPath, registry); err != nil {
			return fmt.Errorf("pairs %s: %w", btPairsPath, err)
		}
	}

	bt, err := backtest.New(cfg, btDataDir, registry)
	if err != nil {
		return fmt.Errorf("build backtest: %w", err)
	}

	report, err := bt.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d report(s) to %s\n", report.Len(), report.OutputDir)
	return nil
}

// loadPairsFile registers every venue's pair set from a JSON document
// shaped { "<venue>": [ pairs.PairConf, ... ], ... }, the registry's own
// bulk-load entry point for startup from exchange metadata.
func loadPairsFile(path string, registry *pairs.Registry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var byVenue map[string][]pairs.PairConf
	if err := kv.Decode(raw, &byVenue); err != nil {
		return err
	}
	for venue, confs := range byVenue {
		registry.Register(venue, confs)
	}
	return nil
}
