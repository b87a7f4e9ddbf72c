// Package exchange defines the contract an Order Manager uses to talk to
// one venue's trading API.
package exchange

import (
	"context"
	"time"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/orders"
	"github.com/tradai/core/internal/pairs"
)

// Adapter is the minimal surface an Order Manager needs from one venue.
// Exchange-specific adapters (REST/WebSocket clients for a given venue)
// live outside this module; any implementation plugs in through this
// interface. The interface itself is declared next to its consumer in
// internal/orders; this alias is the name venue adapters implement.
type Adapter = orders.Adapter

// Ticker is a venue's last-price snapshot for one pair.
type Ticker struct {
	Pair string
	Last float64
	Bid  float64
	Ask  float64
	TS   time.Time
}

// Balance is one asset's free/locked amounts on a venue account.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// MarginAccount summarises the borrow state of a cross or isolated margin
// account, scoped to one pair when the venue isolates them.
type MarginAccount struct {
	Pair        string
	Borrowed    []Balance
	NetAsset    float64 // quote-denominated
	MarginLevel float64
}

// MarketData is the read-only quote surface a full venue adapter exposes
// on top of Adapter: spot snapshots and, where the venue offers it, the
// recent trade history.
type MarketData interface {
	Ticker(ctx context.Context, pair string) (Ticker, error)
	Orderbook(ctx context.Context, pair string) (market.Orderbook, error)
	TradeHistory(ctx context.Context, pair string) ([]market.Trade, error)
}

// Account is the account-state surface a full venue adapter exposes:
// balances, margin state, the venue's pair metadata used to seed the pair
// registry at startup, and the current borrow rate for margin PnL.
type Account interface {
	AccountBalances(ctx context.Context) ([]Balance, error)
	MarginAccount(ctx context.Context, pair string) (MarginAccount, error)
	Pairs(ctx context.Context) ([]pairs.PairConf, error)
	MarginInterestRate(ctx context.Context, symbol string) (float64, error)
}

// ErrInvalidPrice is the sentinel an Adapter returns when the venue
// rejects an order specifically for its price, so the Order Manager can
// record Rejected(InvalidPrice) instead of a generic BadRequest.
var ErrInvalidPrice = errs.ErrInvalidPrice
