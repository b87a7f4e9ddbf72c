package orders

// QuoteFees sums each fill's fee expressed in quote-asset terms; position
// accounting depends on this to compute realized quote value. A fee
// denominated in the base asset is converted at the fill price, a fee in
// the quote asset passes through, and an unknown fee asset is treated as
// already quote-denominated.
func (o OrderDetail) QuoteFees() float64 {
	var total float64
	for _, f := range o.Fills {
		switch f.FeeAsset {
		case o.BaseAsset:
			total += f.Fee * f.Price
		default:
			total += f.Fee
		}
	}
	return total
}

// BaseFees sums each fill's fee expressed in base-asset terms.
func (o OrderDetail) BaseFees() float64 {
	var total float64
	for _, f := range o.Fills {
		switch f.FeeAsset {
		case o.QuoteAsset:
			if f.Price != 0 {
				total += f.Fee / f.Price
			}
		default:
			total += f.Fee
		}
	}
	return total
}

// QuoteValue is the order's total executed notional.
func (o OrderDetail) QuoteValue() float64 {
	return o.TotalExecutedQty * o.WeightedPrice
}

// RealizedQuoteValue is the executed notional net of quote-denominated
// fees.
func (o OrderDetail) RealizedQuoteValue() float64 {
	return o.QuoteValue() - o.QuoteFees()
}
