// Package strategy defines the pluggable Strategy interface the Strategy
// Driver invokes. Concrete strategies live under
// internal/strategy/examples; the interface here is the seam the factory
// registry resolves by name.
package strategy

import (
	"context"

	"github.com/tradai/core/internal/market"
	"github.com/tradai/core/internal/portfolio"
)

// MarketState is the slice of position/lock state at one (venue, pair)
// the driver hands to Eval so a strategy can decide open vs close without
// reaching into the portfolio directly (portfolio.MaybeConvert is the sole
// place preconditions are enforced; this is read-only context).
type MarketState struct {
	HasOpenPosition bool
	PositionKind    portfolio.Kind
	Trading         bool // false while StopTrading is in effect
}

// Strategy is the contract a plugin implements. Channels
// declares the subscriptions the driver wires through the Broker; Eval
// runs once per delivered market event and may emit zero or more signals.
type Strategy interface {
	Name() string
	Channels() []market.MarketChannel
	Eval(ctx context.Context, e market.Envelope, state MarketState) ([]portfolio.TradeSignal, error)
}

// LifecycleCmd is a control message the driver applies between events.
type LifecycleCmd string

const (
	CmdRestart       LifecycleCmd = "restart"
	CmdStopTrading   LifecycleCmd = "stop_trading"
	CmdResumeTrading LifecycleCmd = "resume_trading"
)

// Status is a driver's lifecycle state.
type Status string

const (
	StatusRunning     Status = "running"
	StatusNotTrading  Status = "not_trading"
	StatusStopped     Status = "stopped"
	StatusCompleted   Status = "completed"
	StatusLiquidated  Status = "liquidated"
	StatusDeployError Status = "deploy_error"
)

// Factory constructs a Strategy from free-form parameters, resolved by
// name from a compile-time registry rather than dynamic loading.
type Factory func(params map[string]any) (Strategy, error)

var registry = map[string]Factory{}

// Register adds a factory under name. Called from package init() by each
// concrete strategy package.
func Register(name string, f Factory) { registry[name] = f }

// Lookup resolves a registered factory by name.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}
