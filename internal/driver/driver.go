// Package driver implements the generic Strategy Driver: the lifecycle
// owner for one strategy instance, fanning in market events from the
// Broker, invoking the strategy, converting its signals through the
// Portfolio, and staging the resulting orders on the right venue's Order
// Manager. Same single-mailbox, sequential-handler shape as
// internal/orders.Manager.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/logging"
	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/metrics"
	"github.com/tradai/core/internal/orders"
	"github.com/tradai/core/internal/portfolio"
	"github.com/tradai/core/internal/strategy"
)

// Engine is the subset of a trading engine a Driver needs: resolving a
// venue's Order Manager by name.
type Engine interface {
	Manager(venue string) (*orders.Manager, bool)
}

// MapEngine is the simplest Engine: a static venue->Manager lookup table,
// good enough for both live wiring and the backtest runner's mock engine.
type MapEngine map[string]*orders.Manager

func (e MapEngine) Manager(venue string) (*orders.Manager, bool) {
	m, ok := e[venue]
	return m, ok
}

// Driver is one running strategy instance. All state is
// owned exclusively by its mailbox goroutine; call Run before issuing any
// message.
type Driver struct {
	strat  strategy.Strategy
	pf     *portfolio.Portfolio
	engine Engine
	log    *logging.Logger

	mu      sync.RWMutex
	status  strategy.Status
	trading bool

	last map[portfolio.Key]market.Envelope

	mailbox chan func()
	done    chan struct{}
}

// New constructs a Driver. Call Run in its own goroutine, then Subscribe
// it to a Broker before feeding it events.
func New(strat strategy.Strategy, pf *portfolio.Portfolio, engine Engine) *Driver {
	return &Driver{
		strat:   strat,
		pf:      pf,
		engine:  engine,
		log:     logging.New("driver." + strat.Name()),
		status:  strategy.StatusRunning,
		trading: true,
		last:    make(map[portfolio.Key]market.Envelope),
		mailbox: make(chan func(), 256),
		done:    make(chan struct{}),
	}
}

// Run drains the mailbox sequentially until Stop is called.
func (d *Driver) Run() {
	for {
		select {
		case fn := <-d.mailbox:
			fn()
		case <-d.done:
			return
		}
	}
}

func (d *Driver) Stop() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
}

func (d *Driver) submit(fn func()) {
	select {
	case d.mailbox <- fn:
	case <-d.done:
	}
}

// Subscribe registers the driver's required channels with broker and
// pumps every delivered envelope onto the mailbox, preserving per-channel
// publish order.
func (d *Driver) Subscribe(broker *market.Broker, bufSize int) {
	for _, ch := range d.strat.Channels() {
		sink := broker.Subscribe(ch.Topic(), bufSize)
		go d.pump(sink)
	}
}

func (d *Driver) pump(sink market.Sink) {
	for e := range sink {
		env := e
		d.submit(func() { d.handleEvent(context.Background(), env) })
	}
}

// Status returns the driver's current lifecycle status.
func (d *Driver) Status() strategy.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// HandleEvent processes e synchronously, bypassing the mailbox. Exposed
// for the backtest runner, which serialises its calls with its own mutex
// and doesn't need the extra hop.
func (d *Driver) HandleEvent(ctx context.Context, e market.Envelope) {
	d.handleEvent(ctx, e)
}

func (d *Driver) handleEvent(ctx context.Context, e market.Envelope) {
	if price, ok := priceOf(e); ok {
		if pair, ok := d.pairOf(e); ok {
			if err := d.pf.UpdateFromMarket(ctx, d.pf.Venue(), pair, price); err != nil {
				d.log.Errorf("update_from_market: %v", err)
			}
		}
	}

	d.evalAndAct(ctx, e)
}

// pairOf resolves the local pair for an envelope's symbol. Drivers in
// this module are single-venue; the symbol carried on the envelope is
// used directly as the pair since the reference strategy subscribes by
// local pair already (exchange-symbol translation is the exchange
// adapter's concern, outside this module).
func (d *Driver) pairOf(e market.Envelope) (string, bool) {
	if e.Symbol == "" {
		return "", false
	}
	return e.Symbol, true
}

func priceOf(e market.Envelope) (float64, bool) {
	switch {
	case e.Trade != nil:
		return e.Trade.Price, true
	case e.TradeCandle != nil:
		return e.TradeCandle.Close, true
	case e.BookCandle != nil:
		return e.BookCandle.Mid.Close, true
	default:
		return 0, false
	}
}

func (d *Driver) evalAndAct(ctx context.Context, e market.Envelope) {
	pair, ok := d.pairOf(e)
	if !ok {
		return
	}
	key := portfolio.Key{Venue: d.pf.Venue(), Pair: pair}
	d.last[key] = e

	state := d.stateFor(key)
	signals, err := d.strat.Eval(ctx, e, state)
	if err != nil {
		d.log.Errorf("strategy eval: %v", err)
		metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "eval_error").Inc()
		return
	}
	for _, sig := range signals {
		metrics.SignalsEmitted.WithLabelValues(d.strat.Name(), string(sig.Kind)).Inc()
		d.actOn(ctx, sig)
	}
}

func (d *Driver) stateFor(key portfolio.Key) strategy.MarketState {
	d.mu.RLock()
	trading := d.trading
	d.mu.RUnlock()

	state := strategy.MarketState{Trading: trading}
	if pos, ok := d.pf.OpenPosition(key); ok {
		state.HasOpenPosition = true
		state.PositionKind = pos.Kind
	}
	return state
}

// actOn converts one signal to an order request and stages it: on a
// staging failure the lock is released and the event
// logged; on success the lock remains until the Order Manager resolves
// the order and a later tick folds it back through UpdatePosition.
func (d *Driver) actOn(ctx context.Context, sig portfolio.TradeSignal) {
	req, err := d.pf.MaybeConvert(sig)
	switch {
	case err != nil:
		d.log.Warnf("maybe_convert rejected signal for %s/%s: %v", sig.Venue, sig.Pair, err)
		metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "rejected").Inc()
		return
	case req == nil:
		metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "no_action").Inc()
		return
	}

	m, ok := d.engine.Manager(sig.Venue)
	if !ok {
		d.log.Errorf("no order manager for venue %s", sig.Venue)
		if uerr := d.pf.UnlockPosition(sig.Venue, sig.Pair); uerr != nil {
			d.log.Errorf("unlock after missing manager: %v", uerr)
		}
		metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "no_manager").Inc()
		return
	}

	detail, err := m.StageOrder(*req)
	if err != nil {
		d.log.Errorf("stage_order failed for %s: %v", req.Pair, err)
		if uerr := d.pf.UnlockPosition(sig.Venue, sig.Pair); uerr != nil {
			d.log.Errorf("unlock after stage failure: %v", uerr)
		}
		metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "stage_failed").Inc()
		return
	}
	metrics.DriverDecisions.WithLabelValues(d.strat.Name(), "staged").Inc()

	// pass_order does blocking exchange I/O; spawn it and fold the result
	// back via the next Tick's UpdatePosition poll.
	go func() {
		if err := m.PassOrder(ctx, detail.ID, *req); err != nil {
			d.log.Errorf("pass_order failed for %s: %v", detail.ID, err)
		}
	}()
}

// Tick is the periodic poll: every held lock's
// order is refreshed from its Order Manager and folded into the
// portfolio; once every lock from this round is resolved, the driver
// re-evaluates each market's last known event to allow immediate
// follow-up signals (e.g. a close filling and immediately reopening).
func (d *Driver) Tick(ctx context.Context) {
	d.submit(func() { d.handleTick(ctx) })
}

func (d *Driver) handleTick(ctx context.Context) {
	locks := d.pf.Locks()
	if len(locks) == 0 {
		return
	}

	resolvedKeys := make([]portfolio.Key, 0, len(locks))
	for key, lock := range locks {
		m, ok := d.engine.Manager(key.Venue)
		if !ok {
			continue
		}
		detail, err := m.GetOrderFromStorage(lock.OrderID)
		if err != nil {
			d.log.Errorf("tick: get order %s: %v", lock.OrderID, err)
			continue
		}
		if _, err := d.pf.UpdatePosition(detail); err != nil {
			if !errorIsBenign(err) {
				d.log.Errorf("tick: update_position %s: %v", detail.ID, err)
			}
			continue
		}
		if detail.IsResolved() {
			resolvedKeys = append(resolvedKeys, key)
		}
	}

	for _, key := range resolvedKeys {
		env, ok := d.last[key]
		if !ok {
			continue
		}
		d.evalAndAct(ctx, env)
	}
}

func errorIsBenign(err error) bool {
	return errors.Is(err, errs.ErrNoLockForOrder)
}

// Apply enqueues a lifecycle command:
// StopTrading/ResumeTrading toggle the gating flag
// Eval is handed via MarketState.Trading; Restart resets status to
// Running.
func (d *Driver) Apply(cmd strategy.LifecycleCmd) strategy.Status {
	result := make(chan strategy.Status, 1)
	d.submit(func() {
		d.mu.Lock()
		switch cmd {
		case strategy.CmdStopTrading:
			d.trading = false
			d.status = strategy.StatusNotTrading
		case strategy.CmdResumeTrading:
			d.trading = true
			d.status = strategy.StatusRunning
		case strategy.CmdRestart:
			d.trading = true
			d.status = strategy.StatusRunning
		}
		status := d.status
		d.mu.Unlock()
		result <- status
	})
	select {
	case s := <-result:
		return s
	case <-time.After(5 * time.Second):
		return d.Status()
	}
}

// MarkCompleted sets the terminal status a backtest driver reaches once
// its dataset replay is exhausted.
func (d *Driver) MarkCompleted() {
	d.mu.Lock()
	d.status = strategy.StatusCompleted
	d.mu.Unlock()
}

// MarkLiquidated records that all positions were force-closed, e.g. by a
// risk breach outside this package's scope.
func (d *Driver) MarkLiquidated() {
	d.mu.Lock()
	d.status = strategy.StatusLiquidated
	d.mu.Unlock()
}

// Portfolio exposes the driver's portfolio for report collection.
func (d *Driver) Portfolio() *portfolio.Portfolio { return d.pf }

// StrategyName exposes the wrapped strategy's name for labeling reports.
func (d *Driver) StrategyName() string { return d.strat.Name() }

// StrategyChannels exposes the wrapped strategy's required channels, for
// callers (the backtest runner) that subscribe to a Broker themselves
// instead of going through Subscribe.
func (d *Driver) StrategyChannels() []market.MarketChannel { return d.strat.Channels() }
