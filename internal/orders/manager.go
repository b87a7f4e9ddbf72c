package orders

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/kv"
	"github.com/tradai/core/internal/logging"
	"github.com/tradai/core/internal/metrics"
	"github.com/tradai/core/internal/pairs"
	"github.com/tradai/core/internal/wal"
)

// Adapter is the slice of a venue's trading API a Manager submits and
// reconciles orders through. Full venue adapters implement this alongside
// the wider surfaces in internal/exchange.
type Adapter interface {
	Venue() string
	Order(ctx context.Context, query AddOrderRequest) (OrderSubmission, error)
	GetOrder(ctx context.Context, orderID, pair, assetType string) (OrderDetail, error)
}

// Manager is one venue's Order Manager: single logical actor with a
// mailbox, owning a WAL and a Repository. Handlers run sequentially off
// the mailbox goroutine; blocking exchange I/O happens in the caller's
// goroutine before the result is folded back in via the mailbox.
type Manager struct {
	venue    string
	adapter  Adapter
	registry *pairs.Registry
	wal      *wal.WAL
	repo     *Repository
	dryRun   bool
	log      *logging.Logger

	mu      sync.RWMutex
	latest  map[string]TransactionStatus
	mailbox chan func()
	done    chan struct{}
}

// NewManager constructs a Manager over its own transactions/orders
// kv.Stores. Call Run in its own goroutine before issuing any operation.
func NewManager(venue string, adapter Adapter, registry *pairs.Registry, walStore, ordersStore *kv.Store, dryRun bool) *Manager {
	return &Manager{
		venue:    venue,
		adapter:  adapter,
		registry: registry,
		wal:      wal.Open(walStore),
		repo:     NewRepository(ordersStore),
		dryRun:   dryRun,
		log:      logging.New("orders." + venue),
		latest:   make(map[string]TransactionStatus),
		mailbox:  make(chan func(), 256),
		done:     make(chan struct{}),
	}
}

// Run drains the mailbox sequentially until Stop is called. Callers must
// start this in its own goroutine.
func (m *Manager) Run() {
	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) Stop() { close(m.done) }

// call enqueues fn on the mailbox and blocks for its result, returning
// ErrMailbox if the manager isn't draining (queue full).
func (m *Manager) call(fn func() error) error {
	resultCh := make(chan error, 1)
	select {
	case m.mailbox <- func() { resultCh <- fn() }:
	default:
		return errs.ErrMailbox
	}
	return <-resultCh
}

// walCmp adapts TransactionStatus.Before to wal.Cmp over encoded bytes.
var walCmp = wal.CmpFunc(func(a, b []byte) bool {
	var ta, tb TransactionStatus
	if err := kv.Decode(a, &ta); err != nil {
		return false
	}
	if err := kv.Decode(b, &tb); err != nil {
		return false
	}
	return ta.Before(tb)
})

// StageOrder assigns a client order id if absent, appends a Staged
// transaction, derives a fresh OrderDetail, and returns it. The caller is
// responsible for then dispatching PassOrder.
func (m *Manager) StageOrder(req AddOrderRequest) (OrderDetail, error) {
	req = req.WithOrderID()
	var detail OrderDetail
	err := m.call(func() error {
		status := TransactionStatus{Kind: KindStaged, Query: &req}
		if err := m.register(req.OrderID, status); err != nil {
			return err
		}
		var err error
		detail, err = m.repo.Get(req.OrderID)
		return err
	})
	if err == nil {
		metrics.OrdersStaged.WithLabelValues(m.venue).Inc()
	}
	return detail, err
}

// PassOrder truncates the staged request against the pair's constraints
// and either synthesises a filled submission (dry run) or calls the
// exchange adapter, then registers the outcome.
func (m *Manager) PassOrder(ctx context.Context, orderID string, req AddOrderRequest) error {
	conf, err := m.registry.PairConf(m.venue, req.Pair)
	if err == nil {
		req = truncateRequest(req, conf)
	}

	var status TransactionStatus
	if req.DryRun || m.dryRun {
		status = TransactionStatus{Kind: KindNew, Submission: &OrderSubmission{
			ID:          req.OrderID,
			Status:      StatusFilled,
			ExecutedQty: req.Qty,
			TimestampMs: time.Now().UnixMilli(),
			Trades: []OrderFill{{
				Price: req.Price,
				Qty:   req.Qty,
				TS:    time.Now().UTC(),
			}},
		}}
	} else {
		submission, err := m.adapter.Order(ctx, req)
		switch {
		case err == nil:
			status = TransactionStatus{Kind: KindNew, Submission: &submission}
		case errors.Is(err, errs.ErrInvalidPrice):
			status = TransactionStatus{Kind: KindRejected, Rejection: &Rejection{Kind: RejectInvalidPrice, Reason: err.Error()}}
		default:
			status = TransactionStatus{Kind: KindRejected, Rejection: &Rejection{Kind: RejectBadRequest, Reason: err.Error()}}
		}
	}

	return m.call(func() error {
		return m.register(orderID, status)
	})
}

// UpdateOrder folds an async exchange account-stream event into the WAL,
// mapping the venue status to a TransactionStatus.
func (m *Manager) UpdateOrder(u OrderUpdate) error {
	status := FromUpdate(u)
	if status == nil {
		return nil
	}
	return m.call(func() error {
		return m.register(u.OrigOrderID, *status)
	})
}

// register always appends to the WAL; it advances the in-memory
// latest-status map only if the incoming status is strictly after the
// existing one (the map never regresses), then applies the
// status-specific mutation to the OrderDetail. Must run on the mailbox
// goroutine.
func (m *Manager) register(orderID string, status TransactionStatus) error {
	raw, err := kv.Encode(status)
	if err != nil {
		return err
	}
	if err := m.wal.Append(orderID, raw); err != nil {
		return err
	}
	metrics.OrdersByStatus.WithLabelValues(m.venue, string(status.Kind)).Inc()

	m.mu.RLock()
	prev, ok := m.latest[orderID]
	m.mu.RUnlock()
	shouldAdvance := !ok || prev.Before(status)

	if err := m.applyToDetail(orderID, status); err != nil {
		m.log.Errorf("update order %s in repository: %v", orderID, err)
	}

	if shouldAdvance {
		m.mu.Lock()
		m.latest[orderID] = status
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) applyToDetail(orderID string, status TransactionStatus) error {
	switch status.Kind {
	case KindStaged:
		detail := NewOrderDetailFromQuery(*status.Query)
		return m.repo.Put(detail)
	case KindNew:
		detail, err := m.repo.Get(orderID)
		if err != nil {
			return err
		}
		detail.ApplySubmission(*status.Submission)
		return m.repo.Put(detail)
	case KindPartiallyFilled, KindFilled:
		detail, err := m.repo.Get(orderID)
		if err != nil {
			return err
		}
		detail.ApplyFillUpdate(*status.Update)
		return m.repo.Put(detail)
	case KindRejected:
		detail, err := m.repo.Get(orderID)
		if err != nil {
			return err
		}
		detail.ApplyRejection(*status.Rejection)
		return m.repo.Put(detail)
	default:
		return errs.ErrOrderNotFound
	}
}

// GetOrder returns the in-memory latest transaction status for orderID.
func (m *Manager) GetOrder(orderID string) (TransactionStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.latest[orderID]
	return status, ok
}

// GetOrderFromStorage returns the repository's current OrderDetail.
func (m *Manager) GetOrderFromStorage(orderID string) (OrderDetail, error) {
	return m.repo.Get(orderID)
}

// RepairOrders replays the WAL's compacted view into the in-memory map,
// then for every non-terminal order asks the exchange for its current
// state and reconciles any divergence.
// Orders whose latest WAL entry is Staged, or whose OrderDetail is missing
// from the repository, have it rebuilt by folding every transaction for
// that id.
func (m *Manager) RepairOrders(ctx context.Context) error {
	compacted, err := m.wal.GetAllCompacted(walCmp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for key, entry := range compacted {
		var status TransactionStatus
		if err := kv.Decode(entry.Value, &status); err != nil {
			continue
		}
		m.latest[key] = status
	}
	snapshot := make(map[string]TransactionStatus, len(m.latest))
	for k, v := range m.latest {
		snapshot[k] = v
	}
	m.mu.Unlock()

	for orderID, status := range snapshot {
		if !status.IsIncomplete() {
			continue
		}
		detail, err := m.repo.Get(orderID)
		if err != nil || status.Kind == KindStaged {
			detail, err = m.rebuildFromTransactions(orderID)
			if err != nil {
				m.log.Errorf("repair order %s: rebuild failed: %v", orderID, err)
				continue
			}
		}
		remote, err := m.adapter.GetOrder(ctx, orderID, detail.Pair, detail.AssetType)
		if err != nil {
			m.log.Errorf("repair order %s: fetch remote: %v", orderID, err)
			continue
		}
		if remote.Status == detail.Status {
			continue
		}
		update := OrderUpdate{
			OrigOrderID: orderID,
			NewStatus:   remote.Status,
			TimestampMs: time.Now().UnixMilli(),
		}
		if err := m.UpdateOrder(update); err != nil {
			m.log.Errorf("repair order %s: reconcile: %v", orderID, err)
		}
	}
	return nil
}

func (m *Manager) rebuildFromTransactions(orderID string) (OrderDetail, error) {
	entries, err := m.wal.GetAllK(orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	var detail OrderDetail
	var haveStaged bool
	for _, e := range entries {
		var status TransactionStatus
		if err := kv.Decode(e.Value, &status); err != nil {
			continue
		}
		if status.Kind == KindStaged {
			detail = NewOrderDetailFromQuery(*status.Query)
			haveStaged = true
			continue
		}
		if !haveStaged {
			continue
		}
		switch status.Kind {
		case KindNew:
			detail.ApplySubmission(*status.Submission)
		case KindPartiallyFilled, KindFilled:
			detail.ApplyFillUpdate(*status.Update)
		case KindRejected:
			detail.ApplyRejection(*status.Rejection)
		}
	}
	if !haveStaged {
		return OrderDetail{}, errs.ErrStagedOrderRequired
	}
	return detail, m.repo.Put(detail)
}

func truncateRequest(req AddOrderRequest, conf pairs.PairConf) AddOrderRequest {
	if req.Qty != 0 {
		req.Qty = mustFloat(conf.TruncateQty(mustDecimal(req.Qty), req.MarginBuy))
	}
	if req.Price != 0 {
		req.Price = mustFloat(conf.TruncatePrice(mustDecimal(req.Price)))
	}
	return req
}
