// Package orders implements the per-venue Order Manager: a WAL-backed
// transaction log, a derived OrderDetail repository, and a single-actor
// state machine that stages, submits, updates and repairs orders.
package orders

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the order lifecycle DAG's vertex set:
// Staged -> Created -> PartiallyFilled -> Filled; any -> Rejected;
// Canceled terminal.
type OrderStatus string

const (
	StatusStaged          OrderStatus = "staged"
	StatusCreated         OrderStatus = "created"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusRejected        OrderStatus = "rejected"
	StatusCanceled        OrderStatus = "canceled"
)

// rank gives OrderStatus a total order consistent with the lifecycle DAG's
// partial order: Staged < Created < PartiallyFilled < Filled, with
// Rejected/Canceled treated as later than anything non-terminal. Before
// (below), the authoritative relation used for WAL compaction, consults it
// only for two different kinds, neither of them Rejected.
var rank = map[OrderStatus]int{
	StatusStaged:          0,
	StatusCreated:         1,
	StatusPartiallyFilled: 2,
	StatusFilled:          3,
	StatusRejected:        4,
	StatusCanceled:        4,
}

// RejectionKind enumerates why an order was rejected.
type RejectionKind string

const (
	RejectBadRequest        RejectionKind = "bad_request"
	RejectInsufficientFunds RejectionKind = "insufficient_funds"
	RejectTimeout           RejectionKind = "timeout"
	RejectCancelled         RejectionKind = "cancelled"
	RejectOther             RejectionKind = "other"
	RejectUnknown           RejectionKind = "unknown"
	RejectInvalidPrice      RejectionKind = "invalid_price"
)

// Rejection carries a kind plus a free-form reason string.
type Rejection struct {
	Kind   RejectionKind `json:"kind"`
	Reason string        `json:"reason,omitempty"`
}

// TransactionKind is the discriminant of TransactionStatus, serialised as
// the "type" tag.
type TransactionKind string

const (
	KindStaged          TransactionKind = "staged"
	KindNew             TransactionKind = "new"
	KindPartiallyFilled TransactionKind = "partially_filled"
	KindFilled          TransactionKind = "filled"
	KindRejected        TransactionKind = "rejected"
)

// TransactionStatus is one WAL entry's payload: a tagged union over the
// order lifecycle DAG's edges.
type TransactionStatus struct {
	Kind TransactionKind `json:"type"`

	Query      *AddOrderRequest `json:"query,omitempty"`      // Staged
	Submission *OrderSubmission `json:"submission,omitempty"` // New
	Update     *OrderUpdate     `json:"update,omitempty"`     // PartiallyFilled / Filled
	Rejection  *Rejection       `json:"rejection,omitempty"`  // Rejected
}

// IsIncomplete reports whether this status is not yet a terminal outcome.
func (t TransactionStatus) IsIncomplete() bool {
	switch t.Kind {
	case KindStaged, KindNew, KindPartiallyFilled:
		return true
	default:
		return false
	}
}

func (t TransactionStatus) statusRank() int {
	switch t.Kind {
	case KindStaged:
		return rank[StatusStaged]
	case KindNew:
		return rank[StatusCreated]
	case KindPartiallyFilled:
		return rank[StatusPartiallyFilled]
	case KindFilled:
		return rank[StatusFilled]
	case KindRejected:
		return rank[StatusRejected]
	default:
		return -1
	}
}

// Before implements the lifecycle DAG's strict before-relation used both
// for in-memory monotonicity and WAL compaction: identical-kind
// transitions never advance, any kind may lead to Rejected, and Rejected
// has no successor.
func (t TransactionStatus) Before(other TransactionStatus) bool {
	if t.Kind == other.Kind {
		return false
	}
	if t.Kind == KindRejected {
		return false
	}
	if other.Kind == KindRejected {
		return true
	}
	return t.statusRank() < other.statusRank()
}

// Transaction is one decoded WAL entry together with its order id and
// timestamp.
type Transaction struct {
	ID     string            `json:"id"`
	Status TransactionStatus `json:"status"`
	TS     int64             `json:"ts,omitempty"`
}

func (t Transaction) IsFilled() bool   { return t.Status.Kind == KindFilled }
func (t Transaction) IsRejected() bool { return t.Status.Kind == KindRejected }
func (t Transaction) IsBadRequest() bool {
	return t.Status.Kind == KindRejected && t.Status.Rejection != nil && t.Status.Rejection.Kind == RejectBadRequest
}
func (t Transaction) IsCancelled() bool {
	return t.Status.Kind == KindRejected && t.Status.Rejection != nil && t.Status.Rejection.Kind == RejectCancelled
}

// OrderFill is one execution event folded into an OrderDetail.
type OrderFill struct {
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Fee      float64   `json:"fee"`
	FeeAsset string    `json:"fee_asset,omitempty"`
	TS       time.Time `json:"ts"`
}

// AddOrderRequest is the inbound order staging request.
type AddOrderRequest struct {
	OrderID       string  `json:"order_id,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	EmitterID     string  `json:"emitter_id,omitempty"`
	Venue         string  `json:"venue"`
	Pair          string  `json:"pair"`
	Side          string  `json:"side"` // buy|sell
	OrderType     string  `json:"order_type"`
	Enforcement   string  `json:"enforcement,omitempty"`
	Qty           float64 `json:"qty,omitempty"`
	QuoteQty      float64 `json:"quote_qty,omitempty"`
	Price         float64 `json:"price,omitempty"`
	StopPrice     float64 `json:"stop_price,omitempty"`
	IcebergQty    float64 `json:"iceberg_qty,omitempty"`
	AssetType     string  `json:"asset_type,omitempty"` // spot|cross_margin|isolated_margin
	MarginBuy     bool    `json:"margin_buy,omitempty"`
	DryRun        bool    `json:"dry_run,omitempty"`
}

// WithOrderID returns a copy with a client order id assigned, generating a
// UUIDv4 if one wasn't supplied.
func (r AddOrderRequest) WithOrderID() AddOrderRequest {
	if r.OrderID != "" {
		return r
	}
	r.OrderID = uuid.NewString()
	return r
}

// OrderSubmission is the exchange's synchronous response to placing an
// order.
type OrderSubmission struct {
	ID                 string      `json:"id"`
	Status             OrderStatus `json:"status"`
	ExecutedQty        float64     `json:"executed_qty"`
	CumulativeQuoteQty float64     `json:"cumulative_quote_qty"`
	BorrowedAsset      string      `json:"borrowed_asset,omitempty"`
	BorrowedAmount     float64     `json:"borrowed_amount,omitempty"`
	Enforcement        string      `json:"enforcement,omitempty"`
	Trades             []OrderFill `json:"trades,omitempty"`
	TimestampMs        int64       `json:"timestamp_ms"`
}

// OrderUpdate is an async execution-report event from the exchange account
// stream.
type OrderUpdate struct {
	OrigOrderID                    string      `json:"orig_order_id"`
	NewStatus                      OrderStatus `json:"new_status"`
	RejectionReason                string      `json:"rejection_reason,omitempty"`
	LastExecutedPrice              float64     `json:"last_executed_price"`
	LastExecutedQty                float64     `json:"last_executed_qty"`
	Commission                     float64     `json:"commission"`
	CommissionAsset                string      `json:"commission_asset,omitempty"`
	CumulativeQuoteAssetTransacted float64     `json:"cumulative_quote_asset_transacted_qty"`
	TimestampMs                    int64       `json:"timestamp_ms"`
}

func (u OrderUpdate) isRejection() bool {
	return u.NewStatus == StatusRejected || u.NewStatus == StatusCanceled
}

// OrderDetail is the Order Repository's derived, queryable view of one
// order.
type OrderDetail struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transaction_id,omitempty"`
	EmitterID     string      `json:"emitter_id,omitempty"`
	RemoteID      string      `json:"remote_id,omitempty"`
	Status        OrderStatus `json:"status"`
	Venue         string      `json:"venue"`
	Pair          string      `json:"pair"`
	BaseAsset     string      `json:"base_asset"`
	QuoteAsset    string      `json:"quote_asset"`
	Side          string      `json:"side"`
	OrderType     string      `json:"order_type"`
	Enforcement   string      `json:"enforcement,omitempty"`
	BaseQty       float64     `json:"base_qty,omitempty"`
	QuoteQty      float64     `json:"quote_qty,omitempty"`
	Price         float64     `json:"price,omitempty"`
	StopPrice     float64     `json:"stop_price,omitempty"`
	IsTest        bool        `json:"is_test"`
	AssetType     string      `json:"asset_type,omitempty"`

	ExecutedQty        float64 `json:"executed_qty,omitempty"`
	CumulativeQuoteQty float64 `json:"cumulative_quote_qty,omitempty"`
	BorrowedAmount     float64 `json:"borrowed_amount,omitempty"`
	BorrowedAsset      string  `json:"borrowed_asset,omitempty"`

	Fills            []OrderFill `json:"fills,omitempty"`
	WeightedPrice    float64     `json:"weighted_price"`
	TotalExecutedQty float64     `json:"total_executed_qty"`

	RejectionReason *Rejection `json:"rejection_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	OpenAt    *time.Time `json:"open_at,omitempty"`
}

func (o OrderDetail) IsSameStatus(s OrderStatus) bool { return o.Status == s }
func (o OrderDetail) IsFilled() bool                  { return o.Status == StatusFilled }
func (o OrderDetail) IsRejected() bool                { return o.Status == StatusRejected }
func (o OrderDetail) IsBadRequest() bool {
	return o.IsRejected() && o.RejectionReason != nil && o.RejectionReason.Kind == RejectBadRequest
}
func (o OrderDetail) IsCancelled() bool {
	return o.IsRejected() && o.RejectionReason != nil && o.RejectionReason.Kind == RejectCancelled
}
func (o OrderDetail) IsRetryable() bool {
	return o.RejectionReason != nil && (o.RejectionReason.Kind == RejectCancelled || o.RejectionReason.Kind == RejectTimeout)
}
func (o OrderDetail) IsResolved() bool {
	return o.Status == StatusFilled || o.Status == StatusRejected || o.Status == StatusCanceled
}

// NewOrderDetailFromQuery derives a fresh Staged OrderDetail from a staging
// request.
func NewOrderDetailFromQuery(req AddOrderRequest) OrderDetail {
	base, quote := splitPair(req.Pair)
	now := time.Now().UTC()
	return OrderDetail{
		ID:            req.OrderID,
		TransactionID: req.TransactionID,
		EmitterID:     req.EmitterID,
		Status:        StatusStaged,
		Venue:         req.Venue,
		Pair:          req.Pair,
		BaseAsset:     base,
		QuoteAsset:    quote,
		Side:          req.Side,
		OrderType:     req.OrderType,
		Enforcement:   req.Enforcement,
		BaseQty:       req.Qty,
		QuoteQty:      req.QuoteQty,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		IsTest:        req.DryRun,
		AssetType:     req.AssetType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func splitPair(pair string) (base, quote string) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '_' {
			return pair[:i], pair[i+1:]
		}
	}
	return pair, ""
}

// ApplySubmission folds a synchronous New(submission) transaction into the
// OrderDetail. A submission arriving
// after the order already resolved (a stale/duplicate message behind a
// fill or rejection already applied) is a no-op, matching
// ApplyFillUpdate/ApplyRejection's terminal-state guard.
func (o *OrderDetail) ApplySubmission(s OrderSubmission) {
	if o.IsResolved() {
		return
	}
	o.ExecutedQty = s.ExecutedQty
	o.CumulativeQuoteQty = s.CumulativeQuoteQty
	o.BorrowedAsset = s.BorrowedAsset
	o.BorrowedAmount = s.BorrowedAmount
	o.RemoteID = s.ID
	o.Enforcement = s.Enforcement
	o.Status = s.Status
	o.Fills = append([]OrderFill(nil), s.Trades...)
	o.updateWeightedPrice()
	o.UpdatedAt = time.Now().UTC()
	openAt := time.UnixMilli(s.TimestampMs).UTC()
	o.OpenAt = &openAt
	if o.Status == StatusFilled {
		closedAt := time.Now().UTC()
		o.ClosedAt = &closedAt
	}
}

// ApplyFillUpdate folds a PartiallyFilled/Filled update into the
// OrderDetail: one fill from the update's last-executed values, then the
// derived aggregates.
func (o *OrderDetail) ApplyFillUpdate(u OrderUpdate) {
	if o.IsResolved() {
		return
	}
	ts := time.UnixMilli(u.TimestampMs).UTC()
	o.Fills = append(o.Fills, OrderFill{
		Price:    u.LastExecutedPrice,
		Qty:      u.LastExecutedQty,
		Fee:      u.Commission,
		FeeAsset: u.CommissionAsset,
		TS:       ts,
	})
	o.CumulativeQuoteQty = u.CumulativeQuoteAssetTransacted
	o.updateWeightedPrice()
	o.UpdatedAt = ts
	if u.NewStatus == StatusFilled {
		o.Status = StatusFilled
		o.ClosedAt = &ts
	} else {
		o.Status = StatusPartiallyFilled
	}
}

// ApplyRejection folds a Rejected transaction into the OrderDetail.
// Rejected and Canceled are both terminal, so this also closes the order,
// matching ApplyFillUpdate's Filled branch. A
// stale rejection arriving after the order already resolved (e.g. a
// delayed reject behind an already-applied fill) is a no-op, mirroring
// ApplyFillUpdate's own terminal-state guard.
func (o *OrderDetail) ApplyRejection(r Rejection) {
	if o.IsResolved() {
		return
	}
	o.RejectionReason = &r
	o.Status = StatusRejected
	now := time.Now().UTC()
	o.UpdatedAt = now
	o.ClosedAt = &now
}

func (o *OrderDetail) updateWeightedPrice() {
	var notional, qty float64
	for _, f := range o.Fills {
		notional += f.Price * f.Qty
		qty += f.Qty
	}
	o.TotalExecutedQty = qty
	if qty > 0 {
		o.WeightedPrice = notional / qty
	}
}

// FromUpdate maps an exchange OrderUpdate to a WAL TransactionStatus:
// rejection statuses -> Rejected(reason), PartiallyFilled ->
// PartiallyFilled, Filled -> Filled, otherwise nil (ignored).
func FromUpdate(u OrderUpdate) *TransactionStatus {
	switch {
	case u.isRejection():
		kind := RejectOther
		if u.NewStatus == StatusCanceled {
			kind = RejectCancelled
		}
		return &TransactionStatus{Kind: KindRejected, Rejection: &Rejection{Kind: kind, Reason: u.RejectionReason}}
	case u.NewStatus == StatusPartiallyFilled:
		return &TransactionStatus{Kind: KindPartiallyFilled, Update: &u}
	case u.NewStatus == StatusFilled:
		return &TransactionStatus{Kind: KindFilled, Update: &u}
	default:
		return nil
	}
}

// OrderResolution classifies how a pending order resolved, for the
// Portfolio/Driver to react to. Strategies that stage dual orders poll
// this to decide whether to keep waiting, retry, or give up.
type OrderResolution string

const (
	ResolutionFilled     OrderResolution = "filled"
	ResolutionCancelled  OrderResolution = "cancelled"
	ResolutionNoChange   OrderResolution = "no_change"
	ResolutionBadRequest OrderResolution = "bad_request"
	ResolutionRejected   OrderResolution = "rejected"
	ResolutionRetryable  OrderResolution = "retryable"
)

// Resolve classifies a refreshed OrderDetail against its previously known
// status.
func Resolve(prev OrderStatus, stored OrderDetail) OrderResolution {
	switch {
	case prev == stored.Status:
		return ResolutionNoChange
	case stored.IsFilled():
		return ResolutionFilled
	case stored.IsBadRequest():
		return ResolutionBadRequest
	case stored.IsRejected():
		if stored.IsRetryable() {
			return ResolutionRetryable
		}
		return ResolutionRejected
	default:
		return ResolutionNoChange
	}
}
