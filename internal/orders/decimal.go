package orders

import "github.com/shopspring/decimal"

func mustDecimal(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func mustFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
