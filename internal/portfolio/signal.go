package portfolio

// TradeSignal is what a Strategy emits after evaluating a market event;
// the Portfolio's MaybeConvert is its sole consumer.
type TradeSignal struct {
	Venue string
	Pair  string

	OpKind OperationKind
	Kind   Kind

	Price float64
	// Qty is optional; zero means "default to value / price".
	Qty float64

	OrderType   string
	Enforcement string
	AssetType   string
	MarginBuy   bool
}

func (s TradeSignal) key() Key { return Key{Venue: s.Venue, Pair: s.Pair} }
