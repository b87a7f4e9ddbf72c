package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tradai/core/internal/dataset"
	"github.com/tradai/core/internal/market"
)

var (
	catDataDir    string
	catVenue      string
	catSymbol     string
	catChannel    string
	catDay        string
	catCompressed bool
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the day-partitioned market-event catalog a backtest reads from",
}

var datasetCatCmd = &cobra.Command{
	Use:   "cat",
	Short: "Print a summary of one venue/symbol/channel/day file in the catalog",
	Args:  cobra.NoArgs,
	RunE:  runDatasetCat,
}

func runDatasetCat(cmd *cobra.Command, args []string) error {
	day, err := time.Parse("2006-01-02", catDay)
	if err != nil {
		return fmt.Errorf("--day: %w", err)
	}
	chType := market.ChannelType(catChannel)

	cat := dataset.NewCatalog(catDataDir, catCompressed)
	path := cat.PathFor(catVenue, catSymbol, chType, day)

	envs, err := dataset.ReadDay(cat, catVenue, catSymbol, chType, day)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", path)
	fmt.Fprintf(out, "%s records\n", humanize.Comma(int64(len(envs))))
	if len(envs) > 0 {
		first, last := envs[0], envs[len(envs)-1]
		fmt.Fprintf(out, "first event_time: %s\n", first.EventTime().UTC())
		fmt.Fprintf(out, "last event_time:  %s\n", last.EventTime().UTC())
	}
	return nil
}
