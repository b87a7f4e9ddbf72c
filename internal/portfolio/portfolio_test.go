package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/interest"
	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/orders"
)

func memRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := pebble.Open("portfolio", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(kv.FromDB("portfolio", db))
}

func filledOrder(pair, side string, qty, price float64) orders.OrderDetail {
	o := orders.NewOrderDetailFromQuery(orders.AddOrderRequest{
		Pair: pair, Side: side, Qty: qty, Price: price,
	}.WithOrderID())
	o.ApplyFillUpdate(orders.OrderUpdate{
		OrigOrderID:       o.ID,
		NewStatus:         orders.StatusFilled,
		LastExecutedPrice: price,
		LastExecutedQty:   qty,
	})
	return o
}

func TestMaybeConvertOutOfCapitalWhenPnlNonPositive(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, nil)
	p.SetPnL(0)

	req, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100})
	require.NoError(t, err)
	require.Nil(t, req)
}

func TestMaybeConvertOpensLongWithDefaultQty(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, nil)
	p.SetPnL(1)

	req, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100})
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, "buy", req.Side)
	require.InDelta(t, 10, req.Qty, 1e-9)
	require.True(t, p.IsLocked(Key{Venue: "binance", Pair: "BTC_USDT"}))
}

func TestMaybeConvertRejectsWhenMarketLocked(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, nil)
	p.SetPnL(1)

	_, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100})
	require.NoError(t, err)

	_, err = p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100})
	require.ErrorIs(t, err, errs.ErrPositionLocked)
}

func TestMaybeConvertOpenThenCloseSignalRoundTrip(t *testing.T) {
	p := New("binance", 1000, 0.001, 1, memRepo(t), nil, nil)
	p.SetPnL(1)

	req, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100, Qty: 1})
	require.NoError(t, err)
	require.NotNil(t, req)

	filled := filledOrder("BTC_USDT", "buy", 1, 100)
	filled.ID = req.OrderID
	pos, err := p.UpdatePosition(filled)
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.True(t, pos.IsOpened())
	require.False(t, p.IsLocked(Key{Venue: "binance", Pair: "BTC_USDT"}))

	p.SetPnL(1)
	closeReq, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpClose, Kind: Long, Price: 110})
	require.NoError(t, err)
	require.NotNil(t, closeReq)
	require.Equal(t, "sell", closeReq.Side)

	closeFilled := filledOrder("BTC_USDT", "sell", closeReq.Qty, 110)
	closeFilled.ID = closeReq.OrderID
	closedPos, err := p.UpdatePosition(closeFilled)
	require.NoError(t, err)
	require.NotNil(t, closedPos)
	require.True(t, closedPos.IsClosed())
	require.InDelta(t, closedPos.CloseQuoteValue-closedPos.OpenQuoteValue, closedPos.ResultPL, 1e-9)
	// All positions closed: the pnl baseline resets to the current value.
	require.InDelta(t, p.Value(), p.PnL(), 1e-9)
	require.Greater(t, p.Value(), 1000.0)
}

func TestMaybeConvertBadCloseSignalWithNoOpenPosition(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, nil)
	p.SetPnL(1)

	_, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpClose, Kind: Long, Price: 100})
	require.Error(t, err)
}

func TestUpdateFromMarketUpdatesUnrealizedPL(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, interest.ZeroProvider{})
	p.SetPnL(1)

	req, err := p.MaybeConvert(TradeSignal{Venue: "binance", Pair: "BTC_USDT", OpKind: OpOpen, Kind: Long, Price: 100, Qty: 1})
	require.NoError(t, err)
	filled := filledOrder("BTC_USDT", "buy", 1, 100)
	filled.ID = req.OrderID
	_, err = p.UpdatePosition(filled)
	require.NoError(t, err)

	require.NoError(t, p.UpdateFromMarket(context.Background(), "binance", "BTC_USDT", 120))

	pos, ok := p.OpenPosition(Key{Venue: "binance", Pair: "BTC_USDT"})
	require.True(t, ok)
	require.Greater(t, pos.UnrealizedPL, 0.0)
}

func TestUnlockPositionRemovesFailedOpen(t *testing.T) {
	p := New("binance", 1000, 0, 1, memRepo(t), nil, nil)
	p.SetPnL(1)

	key := Key{Venue: "binance", Pair: "BTC_USDT"}
	p.mu.Lock()
	p.locks[key] = Lock{At: time.Now(), OrderID: "abc"}
	p.openPositions[key] = Position{ID: "p1", Venue: "binance", Pair: "BTC_USDT", OpenOrderID: "abc"}
	p.mu.Unlock()

	require.NoError(t, p.UnlockPosition("binance", "BTC_USDT"))
	require.False(t, p.IsLocked(key))
	_, ok := p.OpenPosition(key)
	require.False(t, ok)
}
