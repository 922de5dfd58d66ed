// Package strategy defines the signal-producing collaborator consumed
// by the simulation driver. Signal generation itself is outside the
// execution core; the driver only needs something that turns coarse
// bars into signals.
package strategy

import "github.com/davidhsu/execsim/internal/core"

// Context is the data handed to a strategy on each coarse bar: the
// coarse history so far, oldest first, with the current bar last.
type Context struct {
	Candles []core.Candle
}

// Current returns the coarse bar being analyzed.
func (c Context) Current() core.Candle {
	return c.Candles[len(c.Candles)-1]
}

// Strategy produces signals from coarse-resolution bars.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string
	// Analyze inspects the coarse history and returns zero or more
	// signals issued at the current bar. It must be deterministic.
	Analyze(ctx Context) ([]core.Signal, error)
}
