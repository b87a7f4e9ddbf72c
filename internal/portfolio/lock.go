package portfolio

import "time"

// Key identifies one market a Portfolio may hold a position in.
type Key struct {
	Venue string
	Pair  string
}

// Lock is held while an order for a market is in flight, preventing a
// second signal on the same market from racing it. At most one Lock per
// (venue, pair).
type Lock struct {
	At      time.Time
	OrderID string
}
