package backtest

import (
	"context"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/exchange"
	"github.com/tradai/core/internal/orders"
)

// mockAdapter is a no-op exchange.Adapter: every Order Manager in a
// backtest runs with dryRun=true, so PassOrder synthesizes fills locally
// and never calls Order; this only exists to satisfy the Adapter
// interface with an instant-fill venue.
type mockAdapter struct{ venue string }

func (a mockAdapter) Venue() string { return a.venue }

func (a mockAdapter) Order(ctx context.Context, req orders.AddOrderRequest) (orders.OrderSubmission, error) {
	return orders.OrderSubmission{}, nil
}

func (a mockAdapter) GetOrder(ctx context.Context, id, pair, assetType string) (orders.OrderDetail, error) {
	return orders.OrderDetail{}, errs.ErrOrderNotFound
}

var _ exchange.Adapter = mockAdapter{}
