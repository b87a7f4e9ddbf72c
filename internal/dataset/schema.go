// Package dataset implements historical replay: a catalog of
// day-partitioned market-event files, a reader that merges per-channel
// streams by event timestamp and republishes them through the Market
// Event Broker, and candle aggregation for channels that ask for it. Day
// files are Arrow IPC streams, optionally zstd-compressed.
package dataset

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tradai/core/internal/market"
)

var alloc = memory.NewGoAllocator()

// TradesSchema: [event_ms, pair, price, amount, side].
var TradesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "event_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "pair", Type: arrow.BinaryTypes.String},
	{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "amount", Type: arrow.PrimitiveTypes.Float64},
	{Name: "side", Type: arrow.BinaryTypes.String},
}, nil)

// OrderbooksSchema: [ts, pair, asks[], bids[]], each level flattened into
// parallel price/qty list columns.
var OrderbooksSchema = arrow.NewSchema([]arrow.Field{
	{Name: "ts", Type: arrow.PrimitiveTypes.Int64},
	{Name: "pair", Type: arrow.BinaryTypes.String},
	{Name: "ask_price", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "ask_qty", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "bid_price", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "bid_qty", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
}, nil)

// CandlesSchema: [event_time, start, end, OHLCV, trade_count, is_final].
var CandlesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "event_time", Type: arrow.PrimitiveTypes.Int64},
	{Name: "start", Type: arrow.PrimitiveTypes.Int64},
	{Name: "end", Type: arrow.PrimitiveTypes.Int64},
	{Name: "open", Type: arrow.PrimitiveTypes.Float64},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "trade_count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "is_final", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// SchemaFor returns the day-file schema for a channel type.
func SchemaFor(t market.ChannelType) *arrow.Schema {
	switch t {
	case market.ChannelTrades:
		return TradesSchema
	case market.ChannelOrderbooks:
		return OrderbooksSchema
	case market.ChannelCandles, market.ChannelQuoteCandles:
		return CandlesSchema
	default:
		return TradesSchema
	}
}

// BuildTradesRecord encodes envs (all Trade payloads, same symbol) into one
// Arrow record batch for writing to a day file.
func BuildTradesRecord(envs []market.Envelope) arrow.Record {
	b := array.NewRecordBuilder(alloc, TradesSchema)
	defer b.Release()
	for _, e := range envs {
		if e.Trade == nil {
			continue
		}
		b.Field(0).(*array.Int64Builder).Append(e.Trade.EventTime.UnixMilli())
		b.Field(1).(*array.StringBuilder).Append(e.Symbol)
		b.Field(2).(*array.Float64Builder).Append(e.Trade.Price)
		b.Field(3).(*array.Float64Builder).Append(e.Trade.Qty)
		b.Field(4).(*array.StringBuilder).Append(string(e.Trade.Side))
	}
	return b.NewRecord()
}

// ReadTradesRecord decodes a trades record batch back into envelopes.
func ReadTradesRecord(rec arrow.Record) []market.Envelope {
	ts := rec.Column(0).(*array.Int64)
	pair := rec.Column(1).(*array.String)
	price := rec.Column(2).(*array.Float64)
	amount := rec.Column(3).(*array.Float64)
	side := rec.Column(4).(*array.String)

	out := make([]market.Envelope, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		out[i] = market.Envelope{
			Symbol: pair.Value(i),
			Type:   market.ChannelTrades,
			Trade: &market.Trade{
				Price:     price.Value(i),
				Qty:       amount.Value(i),
				Side:      market.Side(side.Value(i)),
				EventTime: msToTime(ts.Value(i)),
			},
		}
	}
	return out
}

// BuildOrderbooksRecord encodes envs (all Orderbook payloads) into a
// record batch.
func BuildOrderbooksRecord(envs []market.Envelope) arrow.Record {
	b := array.NewRecordBuilder(alloc, OrderbooksSchema)
	defer b.Release()
	for _, e := range envs {
		if e.Orderbook == nil {
			continue
		}
		b.Field(0).(*array.Int64Builder).Append(e.Orderbook.TS.UnixMilli())
		b.Field(1).(*array.StringBuilder).Append(e.Symbol)
		appendLevels(b.Field(2).(*array.ListBuilder), e.Orderbook.Asks, true)
		appendLevels(b.Field(3).(*array.ListBuilder), e.Orderbook.Asks, false)
		appendLevels(b.Field(4).(*array.ListBuilder), e.Orderbook.Bids, true)
		appendLevels(b.Field(5).(*array.ListBuilder), e.Orderbook.Bids, false)
	}
	return b.NewRecord()
}

func appendLevels(lb *array.ListBuilder, levels []market.BookLevel, price bool) {
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.Float64Builder)
	for _, lvl := range levels {
		if price {
			vb.Append(lvl.Price)
		} else {
			vb.Append(lvl.Qty)
		}
	}
}

// ReadOrderbooksRecord decodes an orderbooks record batch back into
// envelopes.
func ReadOrderbooksRecord(rec arrow.Record) []market.Envelope {
	ts := rec.Column(0).(*array.Int64)
	pair := rec.Column(1).(*array.String)
	askPrice := rec.Column(2).(*array.List)
	askQty := rec.Column(3).(*array.List)
	bidPrice := rec.Column(4).(*array.List)
	bidQty := rec.Column(5).(*array.List)

	out := make([]market.Envelope, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		out[i] = market.Envelope{
			Symbol: pair.Value(i),
			Type:   market.ChannelOrderbooks,
			Orderbook: &market.Orderbook{
				TS:   msToTime(ts.Value(i)),
				Asks: levelsAt(askPrice, askQty, i),
				Bids: levelsAt(bidPrice, bidQty, i),
			},
		}
	}
	return out
}

func levelsAt(priceCol, qtyCol *array.List, row int) []market.BookLevel {
	priceStart, priceEnd := priceCol.ValueOffsets(row)
	qtyStart, _ := qtyCol.ValueOffsets(row)
	prices := priceCol.ListValues().(*array.Float64)
	qtys := qtyCol.ListValues().(*array.Float64)

	n := int(priceEnd - priceStart)
	out := make([]market.BookLevel, n)
	for j := 0; j < n; j++ {
		out[j] = market.BookLevel{
			Price: prices.Value(int(priceStart) + j),
			Qty:   qtys.Value(int(qtyStart) + j),
		}
	}
	return out
}

// BuildCandlesRecord encodes envs (all TradeCandle payloads) into a record
// batch.
func BuildCandlesRecord(envs []market.Envelope) arrow.Record {
	b := array.NewRecordBuilder(alloc, CandlesSchema)
	defer b.Release()
	for _, e := range envs {
		if e.TradeCandle == nil {
			continue
		}
		tc := e.TradeCandle
		b.Field(0).(*array.Int64Builder).Append(tc.End.UnixMilli())
		b.Field(1).(*array.Int64Builder).Append(tc.Start.UnixMilli())
		b.Field(2).(*array.Int64Builder).Append(tc.End.UnixMilli())
		b.Field(3).(*array.Float64Builder).Append(tc.Open)
		b.Field(4).(*array.Float64Builder).Append(tc.High)
		b.Field(5).(*array.Float64Builder).Append(tc.Low)
		b.Field(6).(*array.Float64Builder).Append(tc.Close)
		b.Field(7).(*array.Float64Builder).Append(tc.Volume)
		b.Field(8).(*array.Int64Builder).Append(tc.TradeCount)
		b.Field(9).(*array.BooleanBuilder).Append(tc.IsFinal)
	}
	return b.NewRecord()
}

// ReadCandlesRecord decodes a candles record batch back into envelopes.
func ReadCandlesRecord(symbol string, rec arrow.Record) []market.Envelope {
	start := rec.Column(1).(*array.Int64)
	end := rec.Column(2).(*array.Int64)
	open := rec.Column(3).(*array.Float64)
	high := rec.Column(4).(*array.Float64)
	low := rec.Column(5).(*array.Float64)
	cls := rec.Column(6).(*array.Float64)
	vol := rec.Column(7).(*array.Float64)
	cnt := rec.Column(8).(*array.Int64)
	final := rec.Column(9).(*array.Boolean)

	out := make([]market.Envelope, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		out[i] = market.Envelope{
			Symbol: symbol,
			Type:   market.ChannelCandles,
			TradeCandle: &market.TradeCandle{
				Open: open.Value(i), High: high.Value(i), Low: low.Value(i),
				Close: cls.Value(i), Volume: vol.Value(i),
				Start: msToTime(start.Value(i)), End: msToTime(end.Value(i)),
				TradeCount: cnt.Value(i), IsFinal: final.Value(i),
			},
		}
	}
	return out
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
