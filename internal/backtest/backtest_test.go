package backtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/dataset"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/pairs"
	"github.com/tradai/core/internal/portfolio"
	"github.com/tradai/core/internal/strategy"
)

// silentStrategy never emits a signal; it exists purely so the runner has
// somewhere to forward events, letting these tests assert on tick/candle
// counts without any order-staging side effects.
type silentStrategy struct {
	name     string
	channels []market.MarketChannel
}

func (s *silentStrategy) Name() string                     { return s.name }
func (s *silentStrategy) Channels() []market.MarketChannel { return s.channels }
func (s *silentStrategy) Eval(ctx context.Context, e market.Envelope, state strategy.MarketState) ([]portfolio.TradeSignal, error) {
	return nil, nil
}

func init() {
	strategy.Register("backtest_test.candles", func(params map[string]any) (strategy.Strategy, error) {
		res := 200 * time.Millisecond
		return &silentStrategy{name: "candles", channels: []market.MarketChannel{
			{Symbol: "BTC_USDT", Type: market.ChannelCandles, CandleResolution: &res, OnlyFinal: true},
		}}, nil
	})
	strategy.Register("backtest_test.trades", func(params map[string]any) (strategy.Strategy, error) {
		return &silentStrategy{name: "trades", channels: []market.MarketChannel{
			{Symbol: "BTC_USDT", Type: market.ChannelTrades},
		}}, nil
	})
	strategy.Register("backtest_test.orderbooks", func(params map[string]any) (strategy.Strategy, error) {
		return &silentStrategy{name: "orderbooks", channels: []market.MarketChannel{
			{Symbol: "BTC_USDT", Type: market.ChannelOrderbooks},
		}}, nil
	})
}

func seedCandleDay(t *testing.T, cat *dataset.Catalog, day time.Time, n int, step time.Duration) {
	t.Helper()
	var trades []market.Envelope
	for i := 0; i < n; i++ {
		trades = append(trades, market.Envelope{
			Symbol: "BTC_USDT", Type: market.ChannelTrades,
			Trade: &market.Trade{Price: 100 + float64(i), Qty: 1, EventTime: day.Add(time.Duration(i) * step)},
		})
	}
	require.NoError(t, dataset.WriteDay(cat, "binance", "BTC_USDT", market.ChannelTrades, day, trades))
}

// A strategy subscribing to 200ms candles for BTC_USDT on 2022-01-22
// sees exactly 8 final candles over a dense trade day.
func TestBacktestCandlesScenario(t *testing.T) {
	dir, err := os.MkdirTemp("", "backtest-candles-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	day := time.Date(2022, 1, 22, 0, 0, 0, 0, time.UTC)
	cat := dataset.NewCatalog(dir, false)
	seedCandleDay(t, cat, day, 16, 100*time.Millisecond)

	registry := pairs.New()
	registry.RegisterPair("binance", "BTC_USDT", "BTCUSDT")

	cfg := config.BacktestConfig{
		Period: config.Period{Start: day, End: day},
		Strategies: []config.StrategySettings{{
			Name: "backtest_test.candles", Venue: "binance", Pair: "BTC_USDT",
			Channels: []config.ChannelSpec{{Symbol: "BTC_USDT", Type: "candles", CandleResMs: 200, OnlyFinal: true}},
		}},
		OutputDir: dir,
	}

	bt, err := New(cfg, dir, registry)
	require.NoError(t, err)
	report, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Reports, 1)
	require.Equal(t, 8, report.Reports[0].FinalCandles)
}

// The same symbol read as a raw trades channel reports one tick per
// trade and no candles.
func TestBacktestTradesScenario(t *testing.T) {
	dir, err := os.MkdirTemp("", "backtest-trades-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	day := time.Date(2022, 1, 22, 0, 0, 0, 0, time.UTC)
	cat := dataset.NewCatalog(dir, false)
	seedCandleDay(t, cat, day, 100, 10*time.Millisecond)

	registry := pairs.New()
	registry.RegisterPair("binance", "BTC_USDT", "BTCUSDT")

	cfg := config.BacktestConfig{
		Period: config.Period{Start: day, End: day},
		Strategies: []config.StrategySettings{{
			Name: "backtest_test.trades", Venue: "binance", Pair: "BTC_USDT",
			Channels: []config.ChannelSpec{{Symbol: "BTC_USDT", Type: "trades"}},
		}},
		OutputDir: dir,
	}

	bt, err := New(cfg, dir, registry)
	require.NoError(t, err)
	report, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Reports, 1)
	require.Equal(t, 100, report.Reports[0].Ticks)
	require.Equal(t, 0, report.Reports[0].FinalCandles)
}

// An orderbook channel reports one tick per book snapshot.
func TestBacktestOrderbooksScenario(t *testing.T) {
	dir, err := os.MkdirTemp("", "backtest-books-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	day := time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC)
	cat := dataset.NewCatalog(dir, false)

	var books []market.Envelope
	for i := 0; i < 73; i++ {
		books = append(books, market.Envelope{
			Symbol: "BTC_USDT", Type: market.ChannelOrderbooks,
			Orderbook: &market.Orderbook{TS: day.Add(time.Duration(i) * 200 * time.Millisecond)},
		})
	}
	require.NoError(t, dataset.WriteDay(cat, "binance", "BTC_USDT", market.ChannelOrderbooks, day, books))

	registry := pairs.New()
	registry.RegisterPair("binance", "BTC_USDT", "BTCUSDT")

	cfg := config.BacktestConfig{
		Period: config.Period{Start: day, End: day},
		Strategies: []config.StrategySettings{{
			Name: "backtest_test.orderbooks", Venue: "binance", Pair: "BTC_USDT",
			Channels: []config.ChannelSpec{{Symbol: "BTC_USDT", Type: "orderbooks", TickRateMs: 200}},
		}},
		OutputDir: dir,
	}

	bt, err := New(cfg, dir, registry)
	require.NoError(t, err)
	report, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Reports, 1)
	require.Equal(t, 73, report.Reports[0].Ticks)
}
