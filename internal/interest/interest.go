// Package interest provides the interest-rate lookup used to accrue
// borrow interest on margin positions between open and close.
package interest

import (
	"context"
	"time"

	"github.com/tradai/core/internal/orders"
)

// Provider computes the interest accrued on a margin position since it
// was opened.
type Provider interface {
	InterestFeesSince(ctx context.Context, venue string, openOrder orders.OrderDetail) (float64, error)
}

// StaticProvider charges a fixed daily rate against the borrowed amount,
// prorated by elapsed time. Venues with real borrow-rate APIs can swap
// this out without touching Portfolio.
type StaticProvider struct {
	DailyRate float64
}

func (p StaticProvider) InterestFeesSince(_ context.Context, _ string, openOrder orders.OrderDetail) (float64, error) {
	if openOrder.BorrowedAmount == 0 || openOrder.OpenAt == nil {
		return 0, nil
	}
	elapsed := time.Since(*openOrder.OpenAt)
	days := elapsed.Hours() / 24
	return openOrder.BorrowedAmount * p.DailyRate * days, nil
}

// ZeroProvider never charges interest, for spot-only deployments or tests.
type ZeroProvider struct{}

func (ZeroProvider) InterestFeesSince(context.Context, string, orders.OrderDetail) (float64, error) {
	return 0, nil
}
