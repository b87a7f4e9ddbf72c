package pairs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/errs"
)

func TestRegistryBijection(t *testing.T) {
	r := New()
	r.Register("binance", []PairConf{
		{Venue: "binance", Pair: "BTC_USDT", Symbol: "BTCUSDT"},
		{Venue: "binance", Pair: "ETH_USDT", Symbol: "ETHUSDT"},
	})

	for _, pair := range []string{"BTC_USDT", "ETH_USDT"} {
		symbol, err := r.PairToSymbol("binance", pair)
		require.NoError(t, err)
		back, err := r.SymbolToPair("binance", symbol)
		require.NoError(t, err)
		require.Equal(t, pair, back)
	}
}

func TestRegistryUnknownVenueOrPair(t *testing.T) {
	r := New()
	r.Register("binance", []PairConf{{Venue: "binance", Pair: "BTC_USDT", Symbol: "BTCUSDT"}})

	_, err := r.PairToSymbol("coinbase", "BTC_USDT")
	require.ErrorIs(t, err, errs.ErrExchangeNotInRegistry)

	_, err = r.PairToSymbol("binance", "XRP_USDT")
	require.ErrorIs(t, err, errs.ErrPairUnsupported)
}

func TestRegisterReplacesAtomically(t *testing.T) {
	r := New()
	r.Register("binance", []PairConf{{Venue: "binance", Pair: "BTC_USDT", Symbol: "BTCUSDT"}})
	r.Register("binance", []PairConf{{Venue: "binance", Pair: "ETH_USDT", Symbol: "ETHUSDT"}})

	_, err := r.PairToSymbol("binance", "BTC_USDT")
	require.ErrorIs(t, err, errs.ErrPairUnsupported)

	symbol, err := r.PairToSymbol("binance", "ETH_USDT")
	require.NoError(t, err)
	require.Equal(t, "ETHUSDT", symbol)
}

func TestFilterPairs(t *testing.T) {
	r := New()
	r.Register("binance", []PairConf{
		{Venue: "binance", Pair: "BTC_USDT", Symbol: "BTCUSDT"},
		{Venue: "binance", Pair: "ETH_USDT", Symbol: "ETHUSDT"},
		{Venue: "binance", Pair: "ETH_BTC", Symbol: "ETHBTC"},
	})

	matches, err := r.FilterPairs("binance", []string{"^ETH_"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ETH_USDT", "ETH_BTC"}, matches)
}
