// Package trailing implements the high-water-mark stop ratchet.
//
// The stop is strictly one-directional: the high-water mark never
// worsens, and once the stop is armed it never loosens. Any code path
// violating that corrupts every downstream P&L comparison.
package trailing

import "github.com/davidhsu/execsim/internal/core"

// Stop tracks a position's best favorable excursion and derives a
// monotonically tightening protective level from it.
type Stop struct {
	entry   float64
	side    core.Side
	trigger float64
	offset  float64

	highWater  float64 // best favorable excursion since entry, in points
	armed      bool
	stopPoints float64 // armed stop distance from entry, in points
}

// New creates a Stop for a position entered at entry.
func New(entry float64, side core.Side, params core.TrailingParams) *Stop {
	return &Stop{
		entry:   entry,
		side:    side,
		trigger: params.TriggerPoints,
		offset:  params.OffsetPoints,
	}
}

// Observe updates the high-water mark from one fine bar and tightens
// the armed stop when the excursion allows. It never loosens.
func (s *Stop) Observe(bar core.Candle) {
	var excursion float64
	if s.side == core.SideLong {
		excursion = bar.High - s.entry
	} else {
		excursion = s.entry - bar.Low
	}
	if excursion > s.highWater {
		s.highWater = excursion
	}
	if s.highWater < s.trigger {
		return
	}
	candidate := s.highWater - s.offset
	if !s.armed || candidate > s.stopPoints {
		s.stopPoints = candidate
		s.armed = true
	}
}

// Armed reports whether the trailing stop is active.
func (s *Stop) Armed() bool { return s.armed }

// HighWaterMark returns the best favorable excursion in points.
func (s *Stop) HighWaterMark() float64 { return s.highWater }

// StopPoints returns the armed stop distance from entry in points.
// Zero until armed.
func (s *Stop) StopPoints() float64 { return s.stopPoints }

// Level returns the absolute protective price. The second return is
// false until the stop arms.
func (s *Stop) Level() (float64, bool) {
	if !s.armed {
		return 0, false
	}
	if s.side == core.SideLong {
		return s.entry + s.stopPoints, true
	}
	return s.entry - s.stopPoints, true
}
