// Package errs defines the error taxonomy shared by every core component:
// validation failures, portfolio-discipline rejections, order-lifecycle
// signals, and infrastructure failures. All of it is built
// on github.com/cockroachdb/errors so callers keep errors.Is/errors.As
// semantics across actor/mailbox boundaries while still getting readable
// %+v stack traces in logs.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel validation errors. These never mutate state before returning.
var (
	ErrEmptyPair             = errors.New("empty pair")
	ErrInvalidQty            = errors.New("quantity must be >= 0")
	ErrMissingPrice          = errors.New("missing price")
	ErrPairUnsupported       = errors.New("pair unsupported on venue")
	ErrExchangeNotInRegistry = errors.New("exchange not in pair registry")
	ErrInvalidConfigType     = errors.New("invalid config type")
	ErrUnknownStrategy       = errors.New("unknown strategy name")
)

// Portfolio-discipline errors: returned to the driver, which logs and
// continues without retrying the event.
var (
	ErrPositionLocked         = errors.New("position locked")
	ErrNoLockForOrder         = errors.New("no lock for order")
	ErrZeroOrNegativeOrderQty = errors.New("zero or negative order quantity")
)

// BadSignalError reports a signal whose open/close kind does not match the
// current position state at (venue, pair).
type BadSignalError struct {
	Venue, Pair string
	HasPosition bool
}

func (e *BadSignalError) Error() string {
	return fmt.Sprintf("bad signal for %s/%s (has_position=%v)", e.Venue, e.Pair, e.HasPosition)
}

// BadCloseSignalError reports a close signal with no matching open position.
type BadCloseSignalError struct {
	Kind string
}

func (e *BadCloseSignalError) Error() string {
	return fmt.Sprintf("bad close signal: no open position of kind %s", e.Kind)
}

// BadSideForPositionError reports an order whose side cannot legally act on
// the position kind for the requested operation (open/close).
type BadSideForPositionError struct {
	Op, Kind, Side string
}

func (e *BadSideForPositionError) Error() string {
	return fmt.Sprintf("bad side %q for %s operation on %s position", e.Side, e.Op, e.Kind)
}

// Order-lifecycle errors: used by strategies retrying staged orders.
var (
	ErrOperationCancelled  = errors.New("operation cancelled")
	ErrOperationRestaged   = errors.New("operation restaged")
	ErrNoTransactionChange = errors.New("no transaction change") // keep-polling signal
	ErrNoTransactionInOp   = errors.New("no transaction in operation")
	ErrOrderNotFound       = errors.New("order not found")
	ErrStagedOrderRequired = errors.New("staged order required to rebuild detail")
	ErrMailbox             = errors.New("mailbox closed or unavailable")
)

// ErrInvalidPrice is what an exchange adapter returns when the venue
// rejects an order specifically for its price, so the Order Manager can
// record Rejected(InvalidPrice) instead of a generic BadRequest.
var ErrInvalidPrice = errors.New("invalid price")

// OperationBadRequestError wraps the exchange-reported rejection reason.
type OperationBadRequestError struct {
	Reason string
}

func (e *OperationBadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Reason)
}

// Infrastructure errors: logged, feed backoff in adapters, never block a
// handler's control flow beyond surfacing the failure.
var (
	ErrExchange                 = errors.New("exchange error")
	ErrBackoffConnectionTimeout = errors.New("connection timeout, backing off")
	ErrWebsocket                = errors.New("websocket error")
	ErrNotFound                 = errors.New("not found in storage")
)

// Wrap annotates err with a component name, preserving the error chain.
func Wrap(err error, component string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s", component)
}
