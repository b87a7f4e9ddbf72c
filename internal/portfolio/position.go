// Package portfolio implements the capital/position model: Position
// accounting, position-lock discipline, and the Portfolio that converts
// strategy signals into orders under risk and capital gates.
package portfolio

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradai/core/internal/orders"
)

// Kind is the direction of a position, Long or Short.
type Kind string

const (
	Long  Kind = "long"
	Short Kind = "short"
)

// OperationKind is Open or Close, carried on a TradeSignal.
type OperationKind string

const (
	OpOpen  OperationKind = "open"
	OpClose OperationKind = "close"
)

func (k OperationKind) IsOpen() bool  { return k == OpOpen }
func (k OperationKind) IsClose() bool { return k == OpClose }

// Position is the state of an ongoing or closed position.
type Position struct {
	ID        string
	Venue     string
	Pair      string
	Kind      Kind
	AssetType string

	Quantity          float64
	OpenExecutedQty   float64
	OpenWeightedPrice float64
	OpenQuoteValue    float64
	OpenBaseFees      float64
	BorrowedAmount    float64
	CloseQuoteValue   float64

	CurrentPrice float64
	UnrealizedPL float64
	ResultPL     float64
	Interests    float64

	OpenOrderID  string
	CloseOrderID string

	OpenAt    time.Time
	CloseAt   *time.Time
	UpdatedAt time.Time
}

// Open builds a new Position from a filled opening order.
func Open(venue string, order orders.OrderDetail) Position {
	kind := Long
	if order.Side == "sell" {
		kind = Short
	}
	now := time.Now().UTC()
	return Position{
		ID:                uuid.NewString(),
		Venue:             venue,
		Pair:              order.Pair,
		Kind:              kind,
		AssetType:         order.AssetType,
		Quantity:          order.TotalExecutedQty,
		OpenExecutedQty:   order.TotalExecutedQty,
		OpenWeightedPrice: order.WeightedPrice,
		OpenQuoteValue:    order.RealizedQuoteValue(),
		OpenBaseFees:      order.BaseFees(),
		BorrowedAmount:    order.BorrowedAmount,
		OpenOrderID:       order.ID,
		OpenAt:            now,
		UpdatedAt:         now,
	}
}

// Close records the result of a filled closing order.
func (p *Position) Close(portfolioValue float64, order orders.OrderDetail) {
	now := time.Now().UTC()
	p.CloseOrderID = order.ID
	p.CloseQuoteValue = order.RealizedQuoteValue()
	p.CurrentPrice = order.Price
	p.CloseAt = &now
	p.UpdatedAt = now
	p.ResultPL = p.CalculateResultProfitLoss()
	p.UnrealizedPL = p.ResultPL
}

// Update recomputes unrealized PnL from a fresh market price.
func (p *Position) Update(price, feesRate, interests float64) {
	p.CurrentPrice = price
	p.UnrealizedPL = p.CalculateUnrealProfitLoss(feesRate, interests)
	p.Interests = interests
	p.UpdatedAt = time.Now().UTC()
}

// MarketValue is the position's current quote-denominated size.
func (p Position) MarketValue() float64 {
	qty := p.OpenExecutedQty
	if qty < 0 {
		qty = -qty
	}
	return qty * p.CurrentPrice
}

// CalculateUnrealProfitLoss is the approximate return-on-entry-value PnL
// while the position is open, net of fees and accrued interest.
func (p Position) CalculateUnrealProfitLoss(feesRate, interests float64) float64 {
	enterValue := p.OpenQuoteValue
	currentValue := p.MarketValue()
	if enterValue == 0 {
		return 0
	}
	switch p.Kind {
	case Long:
		return ((currentValue * (1 - feesRate)) - enterValue - interests) / enterValue
	case Short:
		return (enterValue - (currentValue * (1 + feesRate)) - (interests * p.OpenWeightedPrice)) / enterValue
	default:
		return 0
	}
}

// CalculateResultProfitLoss is the exact realized PnL once closed.
func (p Position) CalculateResultProfitLoss() float64 {
	switch p.Kind {
	case Long:
		return p.CloseQuoteValue - p.OpenQuoteValue
	case Short:
		return p.OpenQuoteValue - p.CloseQuoteValue
	default:
		return 0
	}
}

// CalculateProfitLossReturn is the realized PnL as a fraction of the
// entry value, valid once the position is closed.
func (p Position) CalculateProfitLossReturn() float64 {
	if p.OpenQuoteValue == 0 {
		return 0
	}
	return p.ResultPL / p.OpenQuoteValue
}

// CloseQty is the quantity required to close the position, adjusted for
// fees (spot/long) or borrow repayment plus interest (margin short), so
// the close order leaves zero net base position after fees.
func (p Position) CloseQty(feesRate, interests float64) float64 {
	switch p.Kind {
	case Short:
		if p.AssetType == "isolated_margin" || p.AssetType == "cross_margin" {
			return (p.OpenExecutedQty / (1 - feesRate)) + interests
		}
		return p.OpenExecutedQty + p.OpenBaseFees
	case Long:
		return p.OpenExecutedQty - p.OpenBaseFees
	default:
		return p.OpenExecutedQty
	}
}

func (p Position) IsOpened() bool { return p.OpenOrderID != "" && p.CloseOrderID == "" }
func (p Position) IsClosed() bool { return p.CloseOrderID != "" }

// IsFailedOpen reports a position whose opening order never resolved to a
// fill — the lock should be released without ever recording the position.
func (p Position) IsFailedOpen() bool { return p.OpenExecutedQty == 0 }

// IsFailedClose reports a position stuck mid-close (the close order was
// staged but the position was never marked closed).
func (p Position) IsFailedClose() bool { return p.CloseOrderID != "" && p.CloseQuoteValue == 0 }
