package portfolio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseQtyShortMarginCoversBorrowAndInterest(t *testing.T) {
	p := Position{
		Kind:            Short,
		AssetType:       "isolated_margin",
		OpenExecutedQty: 1.0,
	}
	// 1.0 / (1 - 0.001) + 0.0002
	require.InDelta(t, 1.001201, p.CloseQty(0.001, 0.0002), 1e-6)
}

func TestCloseQtyShortSpotAddsBaseFees(t *testing.T) {
	p := Position{
		Kind:            Short,
		AssetType:       "spot",
		OpenExecutedQty: 1.0,
		OpenBaseFees:    0.001,
	}
	require.InDelta(t, 1.001, p.CloseQty(0.001, 0), 1e-9)
}

func TestCloseQtyLongSubtractsBaseFees(t *testing.T) {
	p := Position{
		Kind:            Long,
		OpenExecutedQty: 1.0,
		OpenBaseFees:    0.001,
	}
	require.InDelta(t, 0.999, p.CloseQty(0.001, 0), 1e-9)
}

func TestResultProfitLossPerSide(t *testing.T) {
	long := Position{Kind: Long, OpenQuoteValue: 100, CloseQuoteValue: 110}
	require.InDelta(t, 10, long.CalculateResultProfitLoss(), 1e-9)

	short := Position{Kind: Short, OpenQuoteValue: 110, CloseQuoteValue: 100}
	require.InDelta(t, 10, short.CalculateResultProfitLoss(), 1e-9)
}

func TestUnrealProfitLossPerSide(t *testing.T) {
	long := Position{Kind: Long, OpenExecutedQty: 1, OpenQuoteValue: 100, CurrentPrice: 120}
	// (120*(1-0.001) - 100) / 100
	require.InDelta(t, 0.1988, long.CalculateUnrealProfitLoss(0.001, 0), 1e-9)

	short := Position{Kind: Short, OpenExecutedQty: 1, OpenQuoteValue: 120, OpenWeightedPrice: 120, CurrentPrice: 100}
	// (120 - 100*(1+0.001) - 0.0002*120) / 120
	require.InDelta(t, (120-100.1-0.024)/120, short.CalculateUnrealProfitLoss(0.001, 0.0002), 1e-9)
}
