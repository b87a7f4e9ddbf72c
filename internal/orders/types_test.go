package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionStatusBeforeLifecycleDAG(t *testing.T) {
	staged := TransactionStatus{Kind: KindStaged}
	created := TransactionStatus{Kind: KindNew}
	partial := TransactionStatus{Kind: KindPartiallyFilled}
	filled := TransactionStatus{Kind: KindFilled}
	rejected := TransactionStatus{Kind: KindRejected}

	require.True(t, staged.Before(created))
	require.True(t, staged.Before(partial))
	require.True(t, staged.Before(filled))
	require.True(t, partial.Before(filled))
	require.True(t, filled.Before(rejected))
	require.True(t, staged.Before(rejected))

	require.False(t, filled.Before(partial))
	require.False(t, rejected.Before(filled))
}

func TestTransactionStatusIdenticalVariantDoesNotAdvance(t *testing.T) {
	a := TransactionStatus{Kind: KindPartiallyFilled}
	b := TransactionStatus{Kind: KindPartiallyFilled}
	require.False(t, a.Before(b))
	require.False(t, b.Before(a))
}

func TestOrderDetailWeightedPriceAcrossFills(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.ApplyFillUpdate(OrderUpdate{NewStatus: StatusPartiallyFilled, LastExecutedPrice: 100, LastExecutedQty: 1})
	d.ApplyFillUpdate(OrderUpdate{NewStatus: StatusFilled, LastExecutedPrice: 200, LastExecutedQty: 1})

	require.Equal(t, StatusFilled, d.Status)
	require.InDelta(t, 150.0, d.WeightedPrice, 1e-9)
	require.InDelta(t, 2.0, d.TotalExecutedQty, 1e-9)
	require.NotNil(t, d.ClosedAt)
}

func TestOrderDetailFilledIsTerminalForFurtherFills(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.Status = StatusFilled
	before := len(d.Fills)
	d.ApplyFillUpdate(OrderUpdate{NewStatus: StatusPartiallyFilled, LastExecutedQty: 1})
	require.Len(t, d.Fills, before)
}

func TestOrderDetailResolvedIsTerminalForStaleRejection(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.ApplyFillUpdate(OrderUpdate{NewStatus: StatusFilled, LastExecutedPrice: 100, LastExecutedQty: 1})
	closedAt := d.ClosedAt

	d.ApplyRejection(Rejection{Kind: RejectBadRequest, Reason: "late"})

	require.Equal(t, StatusFilled, d.Status)
	require.Nil(t, d.RejectionReason)
	require.Equal(t, closedAt, d.ClosedAt)
}

func TestOrderDetailResolvedIsTerminalForStaleSubmission(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.ApplyRejection(Rejection{Kind: RejectBadRequest, Reason: "rejected"})

	d.ApplySubmission(OrderSubmission{ID: "remote-1", Status: StatusCreated, ExecutedQty: 1})

	require.Equal(t, StatusRejected, d.Status)
	require.Empty(t, d.RemoteID)
}

func TestOrderDetailApplyRejectionSetsClosedAt(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.ApplyRejection(Rejection{Kind: RejectBadRequest, Reason: "bad"})

	require.Equal(t, StatusRejected, d.Status)
	require.NotNil(t, d.ClosedAt)
}

func TestOrderDetailApplyRejectionCancelledSetsClosedAt(t *testing.T) {
	d := NewOrderDetailFromQuery(AddOrderRequest{OrderID: "o1", Pair: "BTC_USDT", Qty: 1})
	d.ApplyRejection(Rejection{Kind: RejectCancelled})

	require.True(t, d.IsCancelled())
	require.NotNil(t, d.ClosedAt)
}

func TestResolveClassifiesOutcome(t *testing.T) {
	filled := OrderDetail{Status: StatusFilled}
	require.Equal(t, ResolutionFilled, Resolve(StatusCreated, filled))

	noChange := OrderDetail{Status: StatusCreated}
	require.Equal(t, ResolutionNoChange, Resolve(StatusCreated, noChange))

	badReq := OrderDetail{Status: StatusRejected, RejectionReason: &Rejection{Kind: RejectBadRequest}}
	require.Equal(t, ResolutionBadRequest, Resolve(StatusStaged, badReq))

	retryable := OrderDetail{Status: StatusRejected, RejectionReason: &Rejection{Kind: RejectTimeout}}
	require.Equal(t, ResolutionRetryable, Resolve(StatusStaged, retryable))

	rejected := OrderDetail{Status: StatusRejected, RejectionReason: &Rejection{Kind: RejectOther}}
	require.Equal(t, ResolutionRejected, Resolve(StatusStaged, rejected))
}

func TestWithOrderIDAssignsUUIDOnlyWhenMissing(t *testing.T) {
	withID := AddOrderRequest{OrderID: "explicit"}
	require.Equal(t, "explicit", withID.WithOrderID().OrderID)

	without := AddOrderRequest{}
	got := without.WithOrderID()
	require.NotEmpty(t, got.OrderID)
}
