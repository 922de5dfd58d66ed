// Package exits decides whether and why an active trade leaves the
// market on a given fine bar.
//
// Multiple exit conditions can be true within a single bar, so the
// evaluation order is an explicit, configurable policy. The default
// recognizes the favorable outcome before the adverse one.
package exits

import (
	"fmt"

	"github.com/davidhsu/execsim/internal/core"
)

// Reason identifies why a trade completed.
type Reason string

const (
	ReasonTakeProfit   Reason = "take_profit"
	ReasonTrailingStop Reason = "trailing_stop"
	ReasonStopLoss     Reason = "stop_loss"
	ReasonTimeout      Reason = "timeout"
	ReasonMarketClose  Reason = "market_close"

	// ReasonUnresolvable marks a trade terminated because a contract
	// roll could not be priced. Assigned by the state machine, never
	// matched per bar.
	ReasonUnresolvable Reason = "unresolvable"
	// ReasonForcedClose marks a trade flattened by a run abort.
	ReasonForcedClose Reason = "forced_close"
)

// DefaultPrecedence is the documented default evaluation order:
// a favorable outcome is recognized before an adverse one when both
// occur in the same bar.
func DefaultPrecedence() []Reason {
	return []Reason{ReasonTakeProfit, ReasonTrailingStop, ReasonStopLoss, ReasonTimeout, ReasonMarketClose}
}

// ParsePrecedence converts configured reason names into an order,
// rejecting unknown or duplicate entries.
func ParsePrecedence(names []string) ([]Reason, error) {
	if len(names) == 0 {
		return DefaultPrecedence(), nil
	}
	seen := make(map[Reason]bool, len(names))
	out := make([]Reason, 0, len(names))
	for _, n := range names {
		r := Reason(n)
		switch r {
		case ReasonTakeProfit, ReasonTrailingStop, ReasonStopLoss, ReasonTimeout, ReasonMarketClose:
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown exit reason %q", n))
		}
		if seen[r] {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate exit reason %q", n))
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

// Check carries everything the evaluator needs about one trade at one
// fine bar. The bar itself is passed separately and must already be
// expressed in the trade's entry-contract terms.
type Check struct {
	Side          core.Side
	Entry         float64
	StopLoss      float64
	TakeProfit    float64 // 0 disables the target
	TrailingArmed bool
	TrailingLevel float64
	BarsHeld      int
	MaxHoldBars   int // 0 disables the hold limit
	SessionEnd    bool
	ForceFlat     bool
}

// Decision is a matched exit: the governing reason and the exit price.
type Decision struct {
	Reason Reason
	Price  float64
}

// Evaluator applies the configured precedence and stops at the first
// matching condition.
type Evaluator struct {
	precedence []Reason
}

// NewEvaluator builds an Evaluator for the given precedence order.
func NewEvaluator(precedence []Reason) *Evaluator {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence()
	}
	return &Evaluator{precedence: precedence}
}

// Precedence returns the active evaluation order.
func (e *Evaluator) Precedence() []Reason {
	out := make([]Reason, len(e.precedence))
	copy(out, e.precedence)
	return out
}

// Evaluate checks the trade against one fine bar. The second return is
// false when no exit condition matched.
func (e *Evaluator) Evaluate(c Check, bar core.Candle) (Decision, bool) {
	for _, reason := range e.precedence {
		if price, hit := match(reason, c, bar); hit {
			return Decision{Reason: reason, Price: price}, true
		}
	}
	return Decision{}, false
}

func match(reason Reason, c Check, bar core.Candle) (float64, bool) {
	long := c.Side == core.SideLong
	switch reason {
	case ReasonTakeProfit:
		if c.TakeProfit == 0 {
			return 0, false
		}
		if long && bar.High >= c.TakeProfit {
			return c.TakeProfit, true
		}
		if !long && bar.Low <= c.TakeProfit {
			return c.TakeProfit, true
		}
	case ReasonTrailingStop:
		if !c.TrailingArmed {
			return 0, false
		}
		if long && bar.Low <= c.TrailingLevel {
			return c.TrailingLevel, true
		}
		if !long && bar.High >= c.TrailingLevel {
			return c.TrailingLevel, true
		}
	case ReasonStopLoss:
		if long && bar.Low <= c.StopLoss {
			return c.StopLoss, true
		}
		if !long && bar.High >= c.StopLoss {
			return c.StopLoss, true
		}
	case ReasonTimeout:
		if c.MaxHoldBars > 0 && c.BarsHeld >= c.MaxHoldBars {
			return bar.Close, true
		}
	case ReasonMarketClose:
		if c.SessionEnd && c.ForceFlat {
			return bar.Close, true
		}
	}
	return 0, false
}
