package pairs

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PairConf carries everything the Order Manager needs to validate and
// truncate a request for one (venue, pair): the asset legs, size/price
// constraints, decimal precisions and which asset types are tradeable.
type PairConf struct {
	Venue  string
	Pair   string // local "BASE_QUOTE"
	Symbol string // exchange-native form

	Base  string
	Quote string

	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	StepPrice *decimal.Decimal

	MinQty  *decimal.Decimal
	MaxQty  *decimal.Decimal
	StepQty *decimal.Decimal

	MinMarketQty  *decimal.Decimal
	MaxMarketQty  *decimal.Decimal
	StepMarketQty *decimal.Decimal

	MinSize *decimal.Decimal

	BasePrecision  *int32
	QuotePrecision *int32

	SpotAllowed           bool
	CrossMarginAllowed    bool
	IsolatedMarginAllowed bool
}

// TruncateQty truncates qty to the configured step size. marginBuy selects
// away-from-zero rounding (covers borrow exactly); otherwise rounding is
// toward zero: spot and short-margin sells truncate, margin buys round
// up.
func (c PairConf) TruncateQty(qty decimal.Decimal, marginBuy bool) decimal.Decimal {
	if c.StepQty == nil || c.StepQty.IsZero() {
		return qty
	}
	return truncateToStep(qty, *c.StepQty, marginBuy)
}

// TruncatePrice truncates price to the configured price step, always
// rounding toward zero (prices are never "borrowed").
func (c PairConf) TruncatePrice(price decimal.Decimal) decimal.Decimal {
	if c.StepPrice == nil || c.StepPrice.IsZero() {
		return price
	}
	return truncateToStep(price, *c.StepPrice, false)
}

func truncateToStep(v, step decimal.Decimal, awayFromZero bool) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	quotient := v.Div(step)
	var truncated decimal.Decimal
	if awayFromZero {
		if quotient.Sign() >= 0 {
			truncated = quotient.Ceil()
		} else {
			truncated = quotient.Floor()
		}
	} else {
		truncated = quotient.Truncate(0)
	}
	return truncated.Mul(step)
}

// StepPrecision returns the signed decimal exponent x such that
// step ≈ 10^x: find `pattern` (e.g. '1') in the step's decimal string and
// measure its offset from the decimal point. 0.001 yields -3, 10 yields 1.
func StepPrecision(step float64, pattern byte) (int32, bool) {
	s := decimal.NewFromFloat(step).String()
	dot := strings.IndexByte(s, '.')
	idx := strings.IndexByte(s, pattern)
	if idx == -1 {
		return 0, false
	}
	if dot == -1 {
		return int32(len(s) - idx - 1), true
	}
	if idx < dot {
		return int32(dot - idx - 1), true
	}
	return int32(dot - idx), true
}
