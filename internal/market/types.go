// Package market implements the Market Event Broker and its wire types:
// MarketChannel subscription descriptors, timestamped event envelopes, and
// a topic-keyed pub/sub broker fanning out to bounded subscriber sinks.
package market

import "time"

// ChannelType is the kind of market data a MarketChannel subscribes to.
type ChannelType string

const (
	ChannelTrades       ChannelType = "trades"
	ChannelOrderbooks   ChannelType = "orderbooks"
	ChannelCandles      ChannelType = "candles"
	ChannelQuotes       ChannelType = "quotes"
	ChannelQuoteCandles ChannelType = "quote_candles"
	ChannelOpenInterest ChannelType = "open_interest"
)

// MarketChannel is a subscription descriptor: one kind of market data for
// one symbol.
type MarketChannel struct {
	Symbol           string
	Type             ChannelType
	TickRate         *time.Duration
	CandleResolution *time.Duration
	OrderbookDepth   *int
	OnlyFinal        bool
}

// Topic is the Broker's routing key: (symbol, channel-type).
type Topic struct {
	Symbol string
	Type   ChannelType
}

// Topic returns the routing key this channel's events publish under.
func (c MarketChannel) Topic() Topic { return Topic{Symbol: c.Symbol, Type: c.Type} }

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single executed trade.
type Trade struct {
	Price     float64
	Qty       float64
	Side      Side
	EventTime time.Time
}

// BookLevel is one (price, qty) level of an orderbook snapshot or delta.
type BookLevel struct {
	Price float64
	Qty   float64
}

// Orderbook is a full or incremental book update.
type Orderbook struct {
	TS          time.Time
	Asks        []BookLevel
	Bids        []BookLevel
	LastOrderID int64
}

// TradeCandle is an OHLCV bar aggregated from the trade stream.
type TradeCandle struct {
	Open, High, Low, Close, Volume float64
	Start, End                     time.Time
	TradeCount                     int64
	IsFinal                        bool
}

// BookCandle aggregates bid/ask/mid OHLC over a resolution window.
type BookCandle struct {
	Bid, Ask, Mid TradeCandle
}

// SecurityType mirrors the asset-type taxonomy used by AddOrderRequest.
type SecurityType string

const (
	SecuritySpot           SecurityType = "spot"
	SecurityCrossMargin    SecurityType = "cross_margin"
	SecurityIsolatedMargin SecurityType = "isolated_margin"
)

// Envelope is a timestamped, immutable market event. Exactly one payload
// field is populated; Type names which.
type Envelope struct {
	Symbol     string
	TraceID    string
	ReceivedAt time.Time
	Security   SecurityType

	Type ChannelType

	Trade       *Trade
	Orderbook   *Orderbook
	TradeCandle *TradeCandle
	BookCandle  *BookCandle
}

func (e Envelope) Topic() Topic { return Topic{Symbol: e.Symbol, Type: e.Type} }

// EventTime extracts the payload's own timestamp, used by the Dataset
// Reader to merge channels by event time rather than receive time.
func (e Envelope) EventTime() time.Time {
	switch {
	case e.Trade != nil:
		return e.Trade.EventTime
	case e.Orderbook != nil:
		return e.Orderbook.TS
	case e.TradeCandle != nil:
		return e.TradeCandle.End
	case e.BookCandle != nil:
		return e.BookCandle.Mid.End
	default:
		return e.ReceivedAt
	}
}
