// Package fill converts staged orders into actual fills using
// fine-resolution bars, or discards them when the timeout window
// elapses. An unfilled order is an expected outcome, not an error.
package fill

import (
	"fmt"
	"time"

	"github.com/davidhsu/execsim/internal/core"
)

// Mode selects how the reference price is interpreted.
type Mode string

const (
	// ModeMarket fills on the first bar whose range touches the
	// reference price.
	ModeMarket Mode = "market"
	// ModeLimit fills on the first bar whose extreme crosses the
	// reference price in the order's favor.
	ModeLimit Mode = "limit"
)

// MarketPrice selects the fill-price convention for market fills.
// The convention materially affects reported edge, so it is explicit
// configuration rather than a hidden constant.
type MarketPrice string

const (
	// PriceOpen fills at the triggering bar's open.
	PriceOpen MarketPrice = "open"
	// PriceClose fills at the triggering bar's close.
	PriceClose MarketPrice = "close"
	// PriceTouch fills at the signal's reference price itself.
	PriceTouch MarketPrice = "touch"
)

// Policy is the configured fill behavior for a run.
type Policy struct {
	Mode        Mode
	MarketPrice MarketPrice
	TimeoutBars int // fine bars an order may wait before being discarded
}

// Validate checks the policy before any trade is staged.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeMarket, ModeLimit:
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown fill mode %q", p.Mode))
	}
	switch p.MarketPrice {
	case PriceOpen, PriceClose, PriceTouch:
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown market price convention %q", p.MarketPrice))
	}
	if p.TimeoutBars <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("fill timeout must be positive, got %d", p.TimeoutBars))
	}
	return nil
}

// Outcome is the result of examining one fine bar for a staged order.
type Outcome int

const (
	// OutcomePending means no fill yet; keep waiting.
	OutcomePending Outcome = iota
	// OutcomeFilled means the order filled in this bar.
	OutcomeFilled
	// OutcomeExpired means the timeout window elapsed unfilled and the
	// order is discarded.
	OutcomeExpired
)

// Fill is a confirmed entry price and time.
type Fill struct {
	Price float64
	Time  time.Time
}

// Resolver decides fills for staged orders. It holds only the
// configured policy and never mutates shared state; the caller owns
// the per-order wait counter.
type Resolver struct {
	policy Policy
}

// NewResolver creates a Resolver with a validated policy.
func NewResolver(policy Policy) (*Resolver, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{policy: policy}, nil
}

// Expired reports whether an order that has waited the given number of
// fine bars is past its timeout window. Used when a bar cannot be
// examined at all (no contract-roll price) so staged orders still
// expire in bounded time.
func (r *Resolver) Expired(barsWaited int) bool {
	return barsWaited >= r.policy.TimeoutBars
}

// Check examines one fine bar for the given signal. barsWaited is the
// number of fine bars already examined without a fill.
func (r *Resolver) Check(sig core.Signal, barsWaited int, bar core.Candle) (Fill, Outcome) {
	if price, ok := r.fillPrice(sig, bar); ok {
		return Fill{Price: price, Time: bar.Time}, OutcomeFilled
	}
	if barsWaited+1 >= r.policy.TimeoutBars {
		return Fill{}, OutcomeExpired
	}
	return Fill{}, OutcomePending
}

func (r *Resolver) fillPrice(sig core.Signal, bar core.Candle) (float64, bool) {
	switch r.policy.Mode {
	case ModeLimit:
		return limitFill(sig, bar)
	default:
		return r.marketFill(sig, bar)
	}
}

func (r *Resolver) marketFill(sig core.Signal, bar core.Candle) (float64, bool) {
	if !bar.Spans(sig.Price) {
		return 0, false
	}
	switch r.policy.MarketPrice {
	case PriceOpen:
		return bar.Open, true
	case PriceClose:
		return bar.Close, true
	default:
		return sig.Price, true
	}
}

// limitFill applies the pack-standard touch rule with gap handling: a
// bar that opens through the limit fills at its open, otherwise a touch
// fills at the limit price itself.
func limitFill(sig core.Signal, bar core.Candle) (float64, bool) {
	limit := sig.Price
	if sig.Side == core.SideLong {
		if bar.Low > limit {
			return 0, false
		}
		if bar.Open <= limit {
			return bar.Open, true
		}
		return limit, true
	}
	if bar.High < limit {
		return 0, false
	}
	if bar.Open >= limit {
		return bar.Open, true
	}
	return limit, true
}
