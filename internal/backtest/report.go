// Report types and persistence: one BacktestReport per driver, aggregated
// into a GlobalReport written at the end of a run.
package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/logging"
	"github.com/tradai/core/internal/metrics"
)

// BacktestReport is one driver's result for the whole replayed period:
// tick counts, final-candle counts, trade counts, and the strategy's
// final portfolio state.
type BacktestReport struct {
	StrategyName  string  `json:"strategy_name"`
	Venue         string  `json:"venue"`
	Ticks         int     `json:"ticks"`
	FinalCandles  int     `json:"final_candles"`
	Trades        int     `json:"trades"`
	FinalValue    float64 `json:"final_value"`
	FinalPnL      float64 `json:"final_pnl"`
	OpenPositions int     `json:"open_positions"`
}

// GlobalReport aggregates every driver's BacktestReport from one run.
type GlobalReport struct {
	OutputDir string           `json:"-"`
	Compress  bool             `json:"-"`
	Reports   []BacktestReport `json:"reports"`
}

// NewGlobalReport builds an empty GlobalReport that writes to outputDir.
func NewGlobalReport(outputDir string, compress bool) *GlobalReport {
	return &GlobalReport{OutputDir: outputDir, Compress: compress}
}

// Len reports how many per-driver reports have been collected so far; the
// CLI prints it after a run.
func (g *GlobalReport) Len() int { return len(g.Reports) }

// Add appends one driver's report.
func (g *GlobalReport) Add(r BacktestReport) { g.Reports = append(g.Reports, r) }

// Write persists the aggregated report to <OutputDir>/global_report.json,
// zstd-compressed to .json.zst when Compress is set, honoring
// TRADAI_BACKTESTS_OUT_DIR via the caller-supplied OutputDir.
func (g *GlobalReport) Write() error {
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return fmt.Errorf("backtest: mkdir %s: %w", g.OutputDir, err)
	}

	body, err := kv.Encode(g)
	if err != nil {
		return fmt.Errorf("backtest: encode global report: %w", err)
	}

	name := "global_report.json"
	if g.Compress {
		name += ".zst"
		body, err = zstdCompress(body)
		if err != nil {
			return fmt.Errorf("backtest: compress global report: %w", err)
		}
	}

	path := filepath.Join(g.OutputDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("backtest: write %s: %w", path, err)
	}

	metrics.BacktestReports.Inc()
	log := logging.New("backtest.report")
	log.Infof("wrote %s (%s, %s records)", path, humanize.Bytes(uint64(len(body))), humanize.Comma(int64(len(g.Reports))))
	return nil
}

func zstdCompress(b []byte) ([]byte, error) {
	w, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return w.EncodeAll(b, nil), nil
}
