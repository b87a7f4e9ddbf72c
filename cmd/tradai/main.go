// Command tradai is the core's CLI surface: a backtest subcommand that
// replays a day-partitioned dataset through one or more strategy drivers
// and writes a GlobalReport, and a dataset subcommand for inspecting the
// catalog backtest reads from.
//
// Live exchange trading is not wired here: real exchange adapters live
// outside this module, so there is no "live" subcommand to route to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/tradai/core/internal/strategy/examples" // registers built-in strategy factories
)

var rootCmd = &cobra.Command{
	Use:   "tradai",
	Short: "tradai runs and inspects backtests over the dataset catalog.",
	Long:  "tradai runs and inspects backtests over the dataset catalog.",
}

func main() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "Path to a JSON backtest config")
	backtestCmd.Flags().StringVarP(&btDataDir, "data-dir", "d", "", "Dataset catalog root directory")
	backtestCmd.Flags().StringVarP(&btPairsPath, "pairs", "p", "", "Path to a JSON pair registry file (optional)")
	_ = backtestCmd.MarkFlagRequired("config")
	_ = backtestCmd.MarkFlagRequired("data-dir")

	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetCatCmd)
	datasetCatCmd.Flags().StringVarP(&catDataDir, "data-dir", "d", "", "Dataset catalog root directory")
	datasetCatCmd.Flags().StringVarP(&catVenue, "venue", "", "", "Venue name")
	datasetCatCmd.Flags().StringVarP(&catSymbol, "symbol", "", "", "Local pair symbol")
	datasetCatCmd.Flags().StringVarP(&catChannel, "channel", "", "trades", "Channel type: trades|orderbooks|candles")
	datasetCatCmd.Flags().StringVarP(&catDay, "day", "", "", "Day to read, YYYY-MM-DD (UTC)")
	datasetCatCmd.Flags().BoolVarP(&catCompressed, "compressed", "z", false, "Catalog files are zstd-compressed")
	_ = datasetCatCmd.MarkFlagRequired("data-dir")
	_ = datasetCatCmd.MarkFlagRequired("venue")
	_ = datasetCatCmd.MarkFlagRequired("symbol")
	_ = datasetCatCmd.MarkFlagRequired("day")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
