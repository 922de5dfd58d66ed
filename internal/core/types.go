package core

import (
	"fmt"
	"time"
)

// Side represents the direction of a position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Direction returns +1 for long and -1 for short positions.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// IsValid checks the side is one of the known values.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// Candle represents a single OHLCV bar at a given resolution.
// Candles are immutable after creation and passed by value.
type Candle struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Time   time.Time
}

// Validate checks the candle has required fields and a coherent range.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return WrapError(ErrBadCandle, fmt.Errorf("empty symbol at %s", c.Time.Format(time.RFC3339)))
	}
	if c.Time.IsZero() {
		return WrapError(ErrBadCandle, fmt.Errorf("zero timestamp for %s", c.Symbol))
	}
	if c.High < c.Low {
		return WrapError(ErrBadCandle,
			fmt.Errorf("%s at %s: high %.4f below low %.4f", c.Symbol, c.Time.Format(time.RFC3339), c.High, c.Low))
	}
	if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
		return WrapError(ErrBadCandle,
			fmt.Errorf("%s at %s: open/close outside high-low range", c.Symbol, c.Time.Format(time.RFC3339)))
	}
	return nil
}

// Spans reports whether the candle's range touches the given price.
func (c Candle) Spans(price float64) bool {
	return c.Low <= price && price <= c.High
}

// TrailingParams holds the trailing-stop configuration attached to a signal.
// Both values are distances in points from the entry price.
type TrailingParams struct {
	TriggerPoints float64
	OffsetPoints  float64
}

// Signal represents a strategy instruction to open a position at
// specified risk/reward levels. Signals are immutable once produced.
type Signal struct {
	Symbol      string
	Side        Side
	Price       float64 // reference price at signal generation
	StopLoss    float64
	TakeProfit  float64
	Trailing    *TrailingParams // nil when trailing disabled
	MaxHoldBars int             // 0 means no hold limit
	Strategy    string
	GeneratedAt time.Time
}

// Validate rejects malformed signals at ingestion so failures do not
// surface deep inside the trade state machine.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return WrapError(ErrBadSignal, fmt.Errorf("empty symbol"))
	}
	if !s.Side.IsValid() {
		return WrapError(ErrBadSignal, fmt.Errorf("%s: unknown side %q", s.Symbol, s.Side))
	}
	if s.Price <= 0 {
		return WrapError(ErrBadSignal, fmt.Errorf("%s: non-positive reference price %.4f", s.Symbol, s.Price))
	}
	if s.GeneratedAt.IsZero() {
		return WrapError(ErrBadSignal, fmt.Errorf("%s: zero timestamp", s.Symbol))
	}
	switch s.Side {
	case SideLong:
		if s.StopLoss >= s.Price {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: long stop %.4f not below entry %.4f", s.Symbol, s.StopLoss, s.Price))
		}
		if s.TakeProfit != 0 && s.TakeProfit <= s.Price {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: long target %.4f not above entry %.4f", s.Symbol, s.TakeProfit, s.Price))
		}
	case SideShort:
		if s.StopLoss <= s.Price {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: short stop %.4f not above entry %.4f", s.Symbol, s.StopLoss, s.Price))
		}
		if s.TakeProfit != 0 && s.TakeProfit >= s.Price {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: short target %.4f not below entry %.4f", s.Symbol, s.TakeProfit, s.Price))
		}
	}
	if s.Trailing != nil {
		if s.Trailing.TriggerPoints <= 0 || s.Trailing.OffsetPoints <= 0 {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: trailing trigger/offset must be positive", s.Symbol))
		}
		if s.Trailing.OffsetPoints >= s.Trailing.TriggerPoints {
			return WrapError(ErrBadSignal,
				fmt.Errorf("%s: trailing offset %.2f not below trigger %.2f",
					s.Symbol, s.Trailing.OffsetPoints, s.Trailing.TriggerPoints))
		}
	}
	return nil
}

// CalendarSpread is one entry of the contract-roll reference table: the
// additive offset that expresses a price quoted on FromSymbol in
// ToSymbol terms, valid from Time onward.
type CalendarSpread struct {
	Time       time.Time
	FromSymbol string
	ToSymbol   string
	Value      float64
}
