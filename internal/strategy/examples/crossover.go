package examples

import (
	"context"
	"fmt"
	"time"

	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/portfolio"
	"github.com/tradai/core/internal/strategy"
)

func init() {
	strategy.Register("ma_crossover", NewCrossover)
}

// Crossover is the reference strategy shipped with this module: an
// EMA(fast) vs EMA(slow) regime filter against final trade candles.
// HighPeak/LowBottom/PriceDownGoingUp/PriceUpGoingDown are the four
// regimes computed from the EMA-gap readings at indices i-3, i-2 and i.
type Crossover struct {
	venue, pair, symbol string
	assetType           string
	fastN, slowN        int

	closes []float64
}

// CrossoverParams is the shape this strategy expects from its factory's
// free-form params map.
type CrossoverParams struct {
	Venue, Pair, Symbol string
	AssetType           string
	FastPeriod          int
	SlowPeriod          int
	ResolutionMs        int64
}

// NewCrossover is the strategy.Factory registered as "ma_crossover".
func NewCrossover(params map[string]any) (strategy.Strategy, error) {
	p := CrossoverParams{FastPeriod: 4, SlowPeriod: 8, ResolutionMs: 200}
	if v, ok := params["venue"].(string); ok {
		p.Venue = v
	}
	if v, ok := params["pair"].(string); ok {
		p.Pair = v
	}
	if v, ok := params["symbol"].(string); ok {
		p.Symbol = v
	}
	if v, ok := params["asset_type"].(string); ok {
		p.AssetType = v
	}
	if v, ok := params["fast"].(int); ok && v > 0 {
		p.FastPeriod = v
	}
	if v, ok := params["slow"].(int); ok && v > 0 {
		p.SlowPeriod = v
	}
	if p.Venue == "" || p.Pair == "" {
		return nil, fmt.Errorf("ma_crossover: venue and pair are required")
	}
	if p.Symbol == "" {
		p.Symbol = p.Pair
	}
	return &Crossover{
		venue:     p.Venue,
		pair:      p.Pair,
		symbol:    p.Symbol,
		assetType: p.AssetType,
		fastN:     p.FastPeriod,
		slowN:     p.SlowPeriod,
	}, nil
}

func (c *Crossover) Name() string { return "ma_crossover:" + c.venue + ":" + c.pair }

func (c *Crossover) Channels() []market.MarketChannel {
	res := 200 * time.Millisecond
	return []market.MarketChannel{{
		Symbol:           c.symbol,
		Type:             market.ChannelCandles,
		CandleResolution: &res,
		OnlyFinal:        true,
	}}
}

// Eval folds one final trade candle into the closing-price buffer and
// emits a signal when the fast/slow EMA gap flips regime.
func (c *Crossover) Eval(ctx context.Context, e market.Envelope, state strategy.MarketState) ([]portfolio.TradeSignal, error) {
	if !state.Trading {
		return nil, nil
	}
	if e.TradeCandle == nil || !e.TradeCandle.IsFinal {
		return nil, nil
	}

	c.closes = append(c.closes, e.TradeCandle.Close)
	minLen := c.slowN + 4
	if len(c.closes) < minLen {
		return nil, nil
	}

	fast := EMA(c.closes, c.fastN)
	slow := EMA(c.closes, c.slowN)
	i := len(c.closes) - 1

	highPeak := slow[i-3] < fast[i-3] && slow[i-2]-fast[i-2] > slow[i-3]-fast[i-3] && slow[i]-fast[i] < slow[i-2]-fast[i-2] && slow[i] < fast[i]
	priceDownGoingUp := slow[i] > fast[i] && slow[i]-fast[i] < slow[i-3]-fast[i-3] && slow[i-3] > fast[i-3]
	lowBottom := fast[i-3] < slow[i-3] && fast[i-2]-slow[i-2] > fast[i-3]-slow[i-3] && fast[i]-slow[i] < fast[i-2]-slow[i-2] && fast[i] < slow[i]
	priceUpGoingDown := fast[i] > slow[i] && fast[i]-slow[i] < fast[i-3]-slow[i-3] && fast[i-3] > slow[i-3]

	buy := lowBottom || priceDownGoingUp
	sell := highPeak || priceUpGoingDown
	if !buy && !sell {
		return nil, nil
	}

	price := e.TradeCandle.Close
	switch {
	case buy && !state.HasOpenPosition:
		return []portfolio.TradeSignal{c.signal(portfolio.OpOpen, portfolio.Long, price)}, nil
	case sell && state.HasOpenPosition && state.PositionKind == portfolio.Long:
		return []portfolio.TradeSignal{c.signal(portfolio.OpClose, portfolio.Long, price)}, nil
	case sell && !state.HasOpenPosition:
		return []portfolio.TradeSignal{c.signal(portfolio.OpOpen, portfolio.Short, price)}, nil
	case buy && state.HasOpenPosition && state.PositionKind == portfolio.Short:
		return []portfolio.TradeSignal{c.signal(portfolio.OpClose, portfolio.Short, price)}, nil
	default:
		return nil, nil
	}
}

func (c *Crossover) signal(op portfolio.OperationKind, kind portfolio.Kind, price float64) portfolio.TradeSignal {
	return portfolio.TradeSignal{
		Venue:     c.venue,
		Pair:      c.pair,
		OpKind:    op,
		Kind:      kind,
		Price:     price,
		OrderType: "market",
		AssetType: c.assetType,
	}
}
