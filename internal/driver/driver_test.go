package driver

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/orders"
	"github.com/tradai/core/internal/pairs"
	"github.com/tradai/core/internal/portfolio"
	"github.com/tradai/core/internal/strategy"
)

// alwaysBuyStrategy opens a long on the first event it sees and never
// emits again, just enough to exercise the driver's stage/lock path.
type alwaysBuyStrategy struct {
	fired bool
}

func (s *alwaysBuyStrategy) Name() string { return "always_buy" }

func (s *alwaysBuyStrategy) Channels() []market.MarketChannel {
	return []market.MarketChannel{{Symbol: "BTC_USDT", Type: market.ChannelTrades}}
}

func (s *alwaysBuyStrategy) Eval(ctx context.Context, e market.Envelope, state strategy.MarketState) ([]portfolio.TradeSignal, error) {
	if s.fired || state.HasOpenPosition || !state.Trading {
		return nil, nil
	}
	s.fired = true
	return []portfolio.TradeSignal{{
		Venue: "binance", Pair: "BTC_USDT", OpKind: portfolio.OpOpen, Kind: portfolio.Long,
		Price: 100, Qty: 1, OrderType: "market",
	}}, nil
}

type dryAdapter struct{}

func (dryAdapter) Venue() string { return "binance" }
func (dryAdapter) Order(ctx context.Context, q orders.AddOrderRequest) (orders.OrderSubmission, error) {
	return orders.OrderSubmission{}, nil
}
func (dryAdapter) GetOrder(ctx context.Context, id, pair, assetType string) (orders.OrderDetail, error) {
	return orders.OrderDetail{}, errs.ErrOrderNotFound
}

func newTestDeps(t *testing.T) (*orders.Manager, *portfolio.Portfolio) {
	t.Helper()
	walDB, err := pebble.Open("wal", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = walDB.Close() })
	ordersDB, err := pebble.Open("orders", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ordersDB.Close() })

	registry := pairs.New()
	registry.RegisterPair("binance", "BTC_USDT", "BTCUSDT")

	m := NewManagerForTest(registry, walDB, ordersDB)
	go m.Run()
	t.Cleanup(m.Stop)

	pf := portfolio.New("binance", 1000, 0, 1, nil, nil, nil)
	pf.SetPnL(1)
	return m, pf
}

// NewManagerForTest mirrors orders.NewManager with an always-dry-run
// adapter, kept local to this test file to avoid exporting a test seam
// from internal/orders.
func NewManagerForTest(registry *pairs.Registry, walDB, ordersDB *pebble.DB) *orders.Manager {
	return orders.NewManager("binance", dryAdapter{}, registry, kv.FromDB("wal", walDB), kv.FromDB("orders", ordersDB), true)
}

func TestDriverStagesOrderFromSignalAndLocksMarket(t *testing.T) {
	m, pf := newTestDeps(t)
	strat := &alwaysBuyStrategy{}
	d := New(strat, pf, MapEngine{"binance": m})

	env := market.Envelope{
		Symbol: "BTC_USDT", Type: market.ChannelTrades,
		Trade: &market.Trade{Price: 100, Qty: 1, EventTime: time.Now()},
	}
	d.HandleEvent(context.Background(), env)

	require.True(t, pf.IsLocked(portfolio.Key{Venue: "binance", Pair: "BTC_USDT"}))

	require.Eventually(t, func() bool {
		locks := pf.Locks()
		for _, lock := range locks {
			detail, err := m.GetOrderFromStorage(lock.OrderID)
			if err == nil && detail.IsFilled() {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestDriverApplyStopTradingGatesEval(t *testing.T) {
	_, pf := newTestDeps(t)
	strat := &alwaysBuyStrategy{}
	d := New(strat, pf, MapEngine{})
	go d.Run()
	t.Cleanup(d.Stop)

	status := d.Apply(strategy.CmdStopTrading)
	require.Equal(t, strategy.StatusNotTrading, status)

	env := market.Envelope{
		Symbol: "BTC_USDT", Type: market.ChannelTrades,
		Trade: &market.Trade{Price: 100, Qty: 1, EventTime: time.Now()},
	}
	d.HandleEvent(context.Background(), env)
	require.False(t, pf.IsLocked(portfolio.Key{Venue: "binance", Pair: "BTC_USDT"}))
}
