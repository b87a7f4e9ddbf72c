package dataset

import (
	"sort"
	"time"

	"github.com/tradai/core/internal/market"
)

// AggregateCandles builds OHLCV trade candles from a trade stream at the
// given resolution.
//
// Candles are grouped by a start-time bucket id (floor(eventTimeMs /
// resolutionMs)) rather than by a running ticker: aggregating without an
// explicit bucket id let a trade that lands exactly on a boundary get
// counted into two adjacent windows, inflating a dense run's candle
// count. Bucket ids are unique and stable regardless of arrival order, so
// each bucket produces exactly one candle.
func AggregateCandles(trades []market.Envelope, symbol string, resolution time.Duration) []market.Envelope {
	resMs := resolution.Milliseconds()
	if resMs <= 0 {
		return nil
	}

	buckets := make(map[int64]*market.TradeCandle)
	var order []int64
	for _, e := range trades {
		if e.Trade == nil {
			continue
		}
		bucketID := e.Trade.EventTime.UnixMilli() / resMs
		c, ok := buckets[bucketID]
		if !ok {
			start := time.UnixMilli(bucketID * resMs).UTC()
			c = &market.TradeCandle{
				Open: e.Trade.Price, High: e.Trade.Price, Low: e.Trade.Price,
				Start: start, End: start.Add(resolution),
			}
			buckets[bucketID] = c
			order = append(order, bucketID)
		}
		c.Close = e.Trade.Price
		if e.Trade.Price > c.High {
			c.High = e.Trade.Price
		}
		if e.Trade.Price < c.Low {
			c.Low = e.Trade.Price
		}
		c.Volume += e.Trade.Qty
		c.TradeCount++
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	// This aggregates a closed historical range, so every bucket is final.
	out := make([]market.Envelope, 0, len(order))
	for _, id := range order {
		c := buckets[id]
		c.IsFinal = true
		out = append(out, market.Envelope{
			Symbol: symbol, Type: market.ChannelCandles,
			TradeCandle: c,
		})
	}
	return out
}
