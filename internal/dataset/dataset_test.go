package dataset

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/market"
)

func tempCatalog(t *testing.T, compress bool) *Catalog {
	t.Helper()
	dir, err := os.MkdirTemp("", "dataset-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return NewCatalog(dir, compress)
}

func TestWriteReadDayTradesRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		cat := tempCatalog(t, compress)
		day := time.Date(2022, 1, 22, 0, 0, 0, 0, time.UTC)
		envs := []market.Envelope{
			{Symbol: "BTC_USDT", Type: market.ChannelTrades, Trade: &market.Trade{
				Price: 100, Qty: 1, Side: market.SideBuy, EventTime: day.Add(10 * time.Millisecond),
			}},
			{Symbol: "BTC_USDT", Type: market.ChannelTrades, Trade: &market.Trade{
				Price: 101, Qty: 2, Side: market.SideSell, EventTime: day.Add(20 * time.Millisecond),
			}},
		}

		require.NoError(t, WriteDay(cat, "binance", "BTC_USDT", market.ChannelTrades, day, envs))
		got, err := ReadDay(cat, "binance", "BTC_USDT", market.ChannelTrades, day)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, 100.0, got[0].Trade.Price)
		require.Equal(t, market.SideBuy, got[0].Trade.Side)
		require.Equal(t, 101.0, got[1].Trade.Price)
		require.True(t, got[1].Trade.EventTime.Equal(day.Add(20*time.Millisecond)))
	}
}

func TestWriteReadDayOrderbooksRoundTrip(t *testing.T) {
	cat := tempCatalog(t, false)
	day := time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC)
	envs := []market.Envelope{
		{Symbol: "BTC_USDT", Type: market.ChannelOrderbooks, Orderbook: &market.Orderbook{
			TS:   day.Add(5 * time.Millisecond),
			Asks: []market.BookLevel{{Price: 101, Qty: 1}, {Price: 102, Qty: 2}},
			Bids: []market.BookLevel{{Price: 99, Qty: 3}},
		}},
	}
	require.NoError(t, WriteDay(cat, "binance", "BTC_USDT", market.ChannelOrderbooks, day, envs))

	got, err := ReadDay(cat, "binance", "BTC_USDT", market.ChannelOrderbooks, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Orderbook.Asks, 2)
	require.Equal(t, 101.0, got[0].Orderbook.Asks[0].Price)
	require.Equal(t, 3.0, got[0].Orderbook.Bids[0].Qty)
}

// TestAggregateCandlesProducesOneBucketPerResolution: 200ms candles over
// a 1.6s dense trade run must produce exactly 8 buckets, not 15, even
// when trades land on exact bucket boundaries.
func TestAggregateCandlesProducesOneBucketPerResolution(t *testing.T) {
	day := time.Date(2022, 1, 22, 0, 0, 0, 0, time.UTC)
	resolution := 200 * time.Millisecond

	var trades []market.Envelope
	for i := 0; i < 16; i++ {
		ts := day.Add(time.Duration(i) * 100 * time.Millisecond)
		trades = append(trades, market.Envelope{
			Symbol: "BTC_USDT", Type: market.ChannelTrades,
			Trade: &market.Trade{Price: 100 + float64(i), Qty: 1, EventTime: ts},
		})
	}

	candles := AggregateCandles(trades, "BTC_USDT", resolution)
	require.Len(t, candles, 8)
	for _, c := range candles {
		require.True(t, c.TradeCandle.IsFinal)
		require.Equal(t, int64(2), c.TradeCandle.TradeCount)
	}
}

func TestStreamWithBrokerMergesChannelsByEventTime(t *testing.T) {
	cat := tempCatalog(t, false)
	day := time.Date(2022, 1, 22, 0, 0, 0, 0, time.UTC)

	trades := []market.Envelope{
		{Symbol: "BTC_USDT", Type: market.ChannelTrades, Trade: &market.Trade{
			Price: 100, Qty: 1, EventTime: day.Add(20 * time.Millisecond),
		}},
		{Symbol: "BTC_USDT", Type: market.ChannelTrades, Trade: &market.Trade{
			Price: 101, Qty: 1, EventTime: day.Add(40 * time.Millisecond),
		}},
	}
	books := []market.Envelope{
		{Symbol: "BTC_USDT", Type: market.ChannelOrderbooks, Orderbook: &market.Orderbook{
			TS: day.Add(10 * time.Millisecond),
		}},
	}
	require.NoError(t, WriteDay(cat, "binance", "BTC_USDT", market.ChannelTrades, day, trades))
	require.NoError(t, WriteDay(cat, "binance", "BTC_USDT", market.ChannelOrderbooks, day, books))

	broker := market.NewBroker()
	sinkTrades := broker.Subscribe(market.Topic{Symbol: "BTC_USDT", Type: market.ChannelTrades}, 8)
	sinkBooks := broker.Subscribe(market.Topic{Symbol: "BTC_USDT", Type: market.ChannelOrderbooks}, 8)

	reader := NewReader(cat)
	period := config.Period{Start: day, End: day}
	channels := []ChannelRequest{
		{Venue: "binance", Symbol: "BTC_USDT", Channel: market.MarketChannel{Symbol: "BTC_USDT", Type: market.ChannelOrderbooks}},
		{Venue: "binance", Symbol: "BTC_USDT", Channel: market.MarketChannel{Symbol: "BTC_USDT", Type: market.ChannelTrades}},
	}
	require.NoError(t, reader.StreamWithBroker(context.Background(), channels, broker, period))

	book := <-sinkBooks
	require.True(t, book.Orderbook.TS.Equal(day.Add(10*time.Millisecond)))

	first := <-sinkTrades
	require.Equal(t, 100.0, first.Trade.Price)
	second := <-sinkTrades
	require.Equal(t, 101.0, second.Trade.Price)
}
