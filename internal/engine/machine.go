// Package engine owns the trade lifecycle: staged orders become active
// trades, active trades complete with exactly one exit reason. The
// state machine is the only component that mutates a Trade.
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/exits"
	"github.com/davidhsu/execsim/internal/fill"
	"github.com/davidhsu/execsim/internal/rollover"
	"github.com/davidhsu/execsim/internal/trailing"
)

// Transition reports what happened to a trade during one fine bar.
type Transition int

const (
	// TransitionNone means the trade state did not change category.
	TransitionNone Transition = iota
	// TransitionFilled means a staged order became an active trade.
	TransitionFilled
	// TransitionDiscarded means a staged order expired unfilled.
	TransitionDiscarded
	// TransitionCompleted means an active trade closed.
	TransitionCompleted
)

// defaultUnresolvedBars bounds how long an active trade may go without
// a contract-roll price before it is forced to the unresolvable state.
const defaultUnresolvedBars = 3

// MachineParams configures a trade state machine.
type MachineParams struct {
	Resolver  *fill.Resolver
	Evaluator *exits.Evaluator
	Rolls     *rollover.Table

	PointValue decimal.Decimal // currency per point
	Commission decimal.Decimal // per round-trip trade
	ForceFlat  bool            // flatten on the session's last bar

	// MaxUnresolvedBars is the number of consecutive fine bars an
	// active trade tolerates without a calendar-spread entry before it
	// terminates as unresolvable. Zero selects the default.
	MaxUnresolvedBars int

	Log *zap.Logger
}

// Machine drives the staged -> active -> completed transitions.
type Machine struct {
	resolver  *fill.Resolver
	evaluator *exits.Evaluator
	rolls     *rollover.Table

	pointValue    decimal.Decimal
	commission    decimal.Decimal
	forceFlat     bool
	maxUnresolved int

	seq int
	log *zap.Logger
}

// NewMachine creates a trade state machine.
func NewMachine(p MachineParams) *Machine {
	if p.MaxUnresolvedBars <= 0 {
		p.MaxUnresolvedBars = defaultUnresolvedBars
	}
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	return &Machine{
		resolver:      p.Resolver,
		evaluator:     p.Evaluator,
		rolls:         p.Rolls,
		pointValue:    p.PointValue,
		commission:    p.Commission,
		forceFlat:     p.ForceFlat,
		maxUnresolved: p.MaxUnresolvedBars,
		log:           p.Log,
	}
}

// Stage validates a signal and creates a staged trade awaiting fill.
// Trade IDs are sequential so repeated runs over identical inputs
// produce identical records.
func (m *Machine) Stage(sig core.Signal) (*Trade, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	m.seq++
	return &Trade{
		ID:         fmt.Sprintf("T-%06d", m.seq),
		Side:       sig.Side,
		Symbol:     sig.Symbol,
		Signal:     sig,
		Status:     StatusStaged,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		lastPrice:  sig.Price,
	}, nil
}

// OnFineBar advances one trade through one fine-resolution bar.
// sessionEnd marks the last bar of the session or of available data.
// A non-nil error reports a missing contract-roll price; the returned
// transition is still authoritative.
func (m *Machine) OnFineBar(t *Trade, bar core.Candle, sessionEnd bool) (Transition, error) {
	switch t.Status {
	case StatusStaged:
		return m.stepStaged(t, bar)
	case StatusActive:
		return m.stepActive(t, bar, sessionEnd)
	default:
		return TransitionNone, nil
	}
}

func (m *Machine) stepStaged(t *Trade, bar core.Candle) (Transition, error) {
	pbar := bar
	if bar.Symbol != t.Symbol {
		conv, err := m.rolls.ConvertCandle(bar, t.Symbol)
		if err != nil {
			// The bar cannot be examined, but it still consumes the
			// timeout window so the order cannot wait forever.
			t.barsWaited++
			if m.resolver.Expired(t.barsWaited) {
				return TransitionDiscarded, nil
			}
			return TransitionNone, err
		}
		pbar = conv
	}

	f, outcome := m.resolver.Check(t.Signal, t.barsWaited, pbar)
	t.barsWaited++
	switch outcome {
	case fill.OutcomeFilled:
		m.activate(t, f)
		return TransitionFilled, nil
	case fill.OutcomeExpired:
		return TransitionDiscarded, nil
	}
	return TransitionNone, nil
}

func (m *Machine) activate(t *Trade, f fill.Fill) {
	t.Status = StatusActive
	t.ActualEntry = f.Price
	t.EntryTime = f.Time
	t.BarsSinceEntry = 0
	t.lastPrice = f.Price
	if t.Signal.Trailing != nil {
		t.Trailing = trailing.New(f.Price, t.Side, *t.Signal.Trailing)
	}
	m.log.Debug("order filled",
		zap.String("trade", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("side", string(t.Side)),
		zap.Float64("entry", f.Price),
		zap.Time("time", f.Time))
}

func (m *Machine) stepActive(t *Trade, bar core.Candle, sessionEnd bool) (Transition, error) {
	pbar := bar
	if bar.Symbol != t.Symbol {
		conv, err := m.rolls.ConvertCandle(bar, t.Symbol)
		if err != nil {
			t.convFailures++
			if t.convFailures >= m.maxUnresolved {
				m.completeUnresolvable(t, bar)
				return TransitionCompleted, err
			}
			return TransitionNone, err
		}
		t.convFailures = 0
		pbar = conv
	}

	t.BarsSinceEntry++

	// The high-water mark is updated from this bar before the exit
	// check, so a bar that arms the stop and then falls through it
	// exits at the freshly armed level.
	if t.Trailing != nil {
		t.Trailing.Observe(pbar)
	}

	check := exits.Check{
		Side:        t.Side,
		Entry:       t.ActualEntry,
		StopLoss:    t.StopLoss,
		TakeProfit:  t.TakeProfit,
		BarsHeld:    t.BarsSinceEntry,
		MaxHoldBars: t.Signal.MaxHoldBars,
		SessionEnd:  sessionEnd,
		ForceFlat:   m.forceFlat,
	}
	if t.Trailing != nil {
		check.TrailingLevel, check.TrailingArmed = t.Trailing.Level()
	}

	if dec, hit := m.evaluator.Evaluate(check, pbar); hit {
		m.complete(t, dec.Reason, dec.Price, pbar.Time)
		return TransitionCompleted, nil
	}

	t.lastPrice = pbar.Close
	return TransitionNone, nil
}

// ForceClose flattens an active trade at its last known price. Used
// when the run is aborted; staged trades are discarded by the caller.
func (m *Machine) ForceClose(t *Trade, ts time.Time) {
	if t.Status != StatusActive {
		return
	}
	m.complete(t, exits.ReasonForcedClose, t.lastPrice, ts)
}

// completeUnresolvable terminates a trade whose contract roll could not
// be priced for too many consecutive bars. The exit price is the last
// close seen in entry-contract terms.
func (m *Machine) completeUnresolvable(t *Trade, bar core.Candle) {
	m.log.Error("contract roll unresolvable, terminating trade",
		zap.String("trade", t.ID),
		zap.String("entry_symbol", t.Symbol),
		zap.String("bar_symbol", bar.Symbol),
		zap.Time("time", bar.Time),
		zap.Int("bars_without_conversion", t.convFailures))
	m.complete(t, exits.ReasonUnresolvable, t.lastPrice, bar.Time)
}

func (m *Machine) complete(t *Trade, reason exits.Reason, price float64, ts time.Time) {
	t.Status = StatusCompleted
	t.ExitReason = reason
	t.ActualExit = price
	t.ExitTime = ts

	dir := decimal.NewFromInt(1)
	if t.Side == core.SideShort {
		dir = decimal.NewFromInt(-1)
	}
	gross := decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(t.ActualEntry)).
		Mul(dir).
		Mul(m.pointValue)

	t.Commission = m.commission
	t.GrossPnL = gross
	t.NetPnL = gross.Sub(m.commission)

	m.log.Debug("trade completed",
		zap.String("trade", t.ID),
		zap.String("reason", string(reason)),
		zap.Float64("exit", price),
		zap.String("net_pnl", t.NetPnL.String()))
}
