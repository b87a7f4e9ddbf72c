package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/interest"
	"github.com/tradai/core/internal/logging"
	"github.com/tradai/core/internal/metrics"
	"github.com/tradai/core/internal/orders"
)

// Portfolio owns the capital ledger, open-position set, and per-market
// locks for one trading driver. Single-threaded mutation: the owning
// Strategy Driver serialises calls into it.
type Portfolio struct {
	mu sync.Mutex

	venue string

	value float64
	pnl   float64

	openPositions map[Key]Position
	locks         map[Key]Lock

	repo          *Repository
	risk          RiskEvaluator
	interestRates interest.Provider

	feesRate      float64
	riskThreshold float64

	log *logging.Logger
}

// New constructs a Portfolio over an optional Repository. It loads no
// persisted state; Restore does that.
func New(venue string, initialValue, feesRate, riskThreshold float64, repo *Repository, risk RiskEvaluator, rates interest.Provider) *Portfolio {
	if risk == nil {
		risk = ExposureRatioEvaluator{}
	}
	if rates == nil {
		rates = interest.ZeroProvider{}
	}
	p := &Portfolio{
		venue:         venue,
		value:         initialValue,
		pnl:           initialValue,
		openPositions: make(map[Key]Position),
		locks:         make(map[Key]Lock),
		repo:          repo,
		risk:          risk,
		interestRates: rates,
		feesRate:      feesRate,
		riskThreshold: riskThreshold,
		log:           logging.New("portfolio." + venue),
	}
	return p
}

// Restore reloads positions, locks and scalars from the repository,
// called once at startup before the driver begins processing events.
func (p *Portfolio) Restore() error {
	if p.repo == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if vars, ok, err := p.repo.LoadVars(); err != nil {
		return errs.Wrap(err, "portfolio.restore.vars")
	} else if ok {
		p.value = vars.Value
		p.pnl = vars.PnL
	}

	positions, err := p.repo.AllPositions()
	if err != nil {
		return errs.Wrap(err, "portfolio.restore.positions")
	}
	for _, pos := range positions {
		if pos.IsClosed() {
			continue
		}
		p.openPositions[Key{Venue: pos.Venue, Pair: pos.Pair}] = pos
	}

	locks, err := p.repo.AllLocks()
	if err != nil {
		return errs.Wrap(err, "portfolio.restore.locks")
	}
	p.locks = locks
	return nil
}

// Venue returns the venue this portfolio's positions and locks are keyed
// under. One Portfolio per driver.
func (p *Portfolio) Venue() string { return p.venue }

func (p *Portfolio) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *Portfolio) PnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pnl
}

func (p *Portfolio) SetValue(v float64) { p.mu.Lock(); p.value = v; p.mu.Unlock() }
func (p *Portfolio) SetPnL(v float64)   { p.mu.Lock(); p.pnl = v; p.mu.Unlock() }

// CurrentReturn is realized pnl as a fraction of the value baseline it
// was measured against.
func (p *Portfolio) CurrentReturn() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value == 0 {
		return 0
	}
	return p.pnl / p.value
}

func (p *Portfolio) IsLocked(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.locks[key]
	return ok
}

func (p *Portfolio) Locks() map[Key]Lock {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Key]Lock, len(p.locks))
	for k, v := range p.locks {
		out[k] = v
	}
	return out
}

func (p *Portfolio) OpenPosition(key Key) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.openPositions[key]
	return pos, ok
}

func (p *Portfolio) OpenPositions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.openPositions))
	for _, pos := range p.openPositions {
		out = append(out, pos)
	}
	return out
}

// PositionsHistory returns every position ever recorded, open or closed.
func (p *Portfolio) PositionsHistory() ([]Position, error) {
	if p.repo == nil {
		return p.OpenPositions(), nil
	}
	return p.repo.AllPositions()
}

func sideForOpen(kind Kind) string {
	if kind == Short {
		return "sell"
	}
	return "buy"
}

func sideForClose(kind Kind) string {
	if kind == Short {
		return "buy"
	}
	return "sell"
}

// MaybeConvert turns a strategy signal into a candidate order, enforcing
// the capital, lock, signal-consistency, quantity and risk preconditions
// in that order. A nil request with a nil error means "no action" (out of
// capital, or risk gate).
func (p *Portfolio) MaybeConvert(signal TradeSignal) (*orders.AddOrderRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. pnl > 0, otherwise out of capital.
	if p.pnl <= 0 {
		return nil, nil
	}

	key := signal.key()

	// 2. no lock exists for this market.
	if _, locked := p.locks[key]; locked {
		return nil, errs.ErrPositionLocked
	}

	pos, hasOpen := p.openPositions[key]

	var side string
	var qty float64

	// 3. signal kind consistent with current state at this market.
	switch {
	case !hasOpen && signal.OpKind.IsOpen():
		side = sideForOpen(signal.Kind)
		qty = signal.Qty

	case hasOpen && signal.OpKind.IsClose() && pos.Kind == signal.Kind && pos.IsOpened():
		side = sideForClose(pos.Kind)
		qty = pos.CloseQty(p.feesRate, pos.Interests)

	case hasOpen:
		return nil, &errs.BadSignalError{Venue: signal.Venue, Pair: signal.Pair, HasPosition: true}

	default:
		return nil, &errs.BadCloseSignalError{Kind: string(signal.Kind)}
	}

	// 4. default quantity if unset.
	if qty == 0 && signal.OpKind.IsOpen() {
		if signal.Price == 0 {
			return nil, errs.ErrMissingPrice
		}
		qty = p.value / signal.Price
	}

	// 5. reject non-positive computed quantity.
	if qty <= 0 {
		return nil, errs.ErrZeroOrNegativeOrderQty
	}

	req := orders.AddOrderRequest{
		Venue:       signal.Venue,
		Pair:        signal.Pair,
		Side:        side,
		OrderType:   signal.OrderType,
		Enforcement: signal.Enforcement,
		Qty:         qty,
		Price:       signal.Price,
		AssetType:   signal.AssetType,
		MarginBuy:   signal.MarginBuy,
	}.WithOrderID()

	// 6. risk evaluator gate.
	if p.risk.Evaluate(p, qty, signal.Price) > p.riskThreshold {
		return nil, nil
	}

	// 7. lock the market in memory and in the repository.
	lock := Lock{At: time.Now().UTC(), OrderID: req.OrderID}
	p.locks[key] = lock
	if p.repo != nil {
		if err := p.repo.SetLock(key, lock); err != nil {
			delete(p.locks, key)
			return nil, errs.Wrap(err, "portfolio.maybe_convert.lock")
		}
	}

	return &req, nil
}

// UpdatePosition folds an OrderDetail back into the position/lock state:
// a filled open-side order creates a Position, a filled close-side order
// realises its PnL, and a resolved order releases the lock.
func (p *Portfolio) UpdatePosition(order orders.OrderDetail) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := Key{Venue: p.venue, Pair: order.Pair}

	if lock, locked := p.locks[key]; locked && lock.OrderID != order.ID {
		return nil, errs.ErrNoLockForOrder
	}

	pos, hasOpen := p.openPositions[key]

	var result *Position

	switch {
	case !hasOpen:
		if !order.IsFilled() {
			break
		}
		newPos := Open(p.venue, order)
		p.openPositions[key] = newPos
		if newPos.Kind == Long {
			p.value -= newPos.OpenQuoteValue
		} else {
			p.value += newPos.OpenQuoteValue
		}
		if p.repo != nil {
			if err := p.repo.OpenPosition(newPos); err != nil {
				return nil, errs.Wrap(err, "portfolio.update_position.open")
			}
		}
		p.log.Infof("position opened pair=%s kind=%s order_id=%s", order.Pair, newPos.Kind, order.ID)
		result = &newPos

	case hasOpen && orderSideOpposesPosition(pos.Kind, order.Side):
		pos.Close(p.value, order)
		if order.IsFilled() {
			if pos.Kind == Long {
				p.value += pos.CloseQuoteValue
			} else {
				p.value -= pos.CloseQuoteValue
			}
			delete(p.openPositions, key)
			if len(p.openPositions) == 0 {
				p.pnl = p.value
			}
			if p.repo != nil {
				if err := p.repo.ClosePosition(pos); err != nil {
					return nil, errs.Wrap(err, "portfolio.update_position.close")
				}
			}
			p.log.Infof("position closed pair=%s kind=%s order_id=%s pnl=%.8f", order.Pair, pos.Kind, order.ID, pos.ResultPL)
		} else if p.repo != nil {
			if err := p.repo.OpenPosition(pos); err != nil {
				return nil, errs.Wrap(err, "portfolio.update_position.close_partial")
			}
		}
		result = &pos

	default:
		return nil, &errs.BadSideForPositionError{Op: "update", Kind: string(pos.Kind), Side: order.Side}
	}

	if order.IsResolved() {
		delete(p.locks, key)
		if p.repo != nil {
			if err := p.repo.ReleaseLock(key); err != nil {
				return nil, errs.Wrap(err, "portfolio.update_position.unlock")
			}
		}
	}

	if p.repo != nil {
		if err := p.repo.UpdateVars(Vars{Value: p.value, PnL: p.pnl}); err != nil {
			return nil, errs.Wrap(err, "portfolio.update_position.vars")
		}
	}

	metrics.PortfolioEquity.WithLabelValues(p.venue).Set(p.value)
	metrics.OpenPositions.WithLabelValues(p.venue).Set(float64(len(p.openPositions)))

	return result, nil
}

// orderSideOpposesPosition reports whether order.Side is the closing
// side for a position of the given kind (buy closes Short, sell closes
// Long).
func orderSideOpposesPosition(kind Kind, side string) bool {
	if kind == Short {
		return side == "buy"
	}
	return side == "sell"
}

// UpdateFromMarket recomputes unrealized PnL for the open position (if
// any) at (venue, pair) against a fresh price.
func (p *Portfolio) UpdateFromMarket(ctx context.Context, venue, pair string, price float64) error {
	p.mu.Lock()
	key := Key{Venue: venue, Pair: pair}
	pos, hasOpen := p.openPositions[key]
	p.mu.Unlock()
	if !hasOpen {
		return nil
	}

	openOrder := orders.OrderDetail{
		BorrowedAmount: pos.BorrowedAmount,
		OpenAt:         &pos.OpenAt,
	}
	interests, err := p.interestRates.InterestFeesSince(ctx, venue, openOrder)
	if err != nil {
		return errs.Wrap(err, "portfolio.update_from_market.interest")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pos, hasOpen = p.openPositions[key]
	if !hasOpen {
		return nil
	}
	pos.Update(price, p.feesRate, interests)
	p.openPositions[key] = pos
	if p.repo != nil {
		if err := p.repo.OpenPosition(pos); err != nil {
			return errs.Wrap(err, "portfolio.update_from_market.persist")
		}
	}
	return nil
}

// UnlockPosition releases the lock on (venue, pair) and, if the position
// there is stuck in a failed-open substate, removes it from the open set.
func (p *Portfolio) UnlockPosition(venue, pair string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := Key{Venue: venue, Pair: pair}
	delete(p.locks, key)

	if pos, ok := p.openPositions[key]; ok && pos.IsFailedOpen() {
		delete(p.openPositions, key)
		if p.repo != nil {
			if err := p.repo.DeletePosition(pos.ID); err != nil {
				return errs.Wrap(err, "portfolio.unlock_position.delete")
			}
		}
	}

	if p.repo != nil {
		if err := p.repo.ReleaseLock(key); err != nil {
			return errs.Wrap(err, "portfolio.unlock_position.lock")
		}
	}
	return nil
}

// ForceClose always returns an error wrapping errs.ErrNoTransactionInOp;
// it does not liquidate or otherwise change the position at (venue, pair).
func (p *Portfolio) ForceClose(venue, pair string) error {
	return errs.Wrap(errs.ErrNoTransactionInOp, "portfolio.force_close: not implemented")
}
