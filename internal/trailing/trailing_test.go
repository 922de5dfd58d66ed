package trailing

import (
	"testing"

	"github.com/davidhsu/execsim/internal/core"
)

func bar(high, low float64) core.Candle {
	return core.Candle{Symbol: "ESH4", Open: (high + low) / 2, High: high, Low: low, Close: (high + low) / 2}
}

func TestStop_ArmsAtTrigger(t *testing.T) {
	s := New(100, core.SideLong, core.TrailingParams{TriggerPoints: 10, OffsetPoints: 4})

	s.Observe(bar(105, 99))
	if s.Armed() {
		t.Fatal("armed below trigger")
	}
	if s.HighWaterMark() != 5 {
		t.Errorf("high-water mark = %v, want 5", s.HighWaterMark())
	}

	// Excursion of 15 points arms the stop at 15 - 4 = 11 points.
	s.Observe(bar(115, 104))
	if !s.Armed() {
		t.Fatal("not armed at trigger")
	}
	level, ok := s.Level()
	if !ok || level != 111 {
		t.Errorf("level = %v, want 111", level)
	}
}

func TestStop_NeverLoosens(t *testing.T) {
	s := New(100, core.SideLong, core.TrailingParams{TriggerPoints: 10, OffsetPoints: 4})
	s.Observe(bar(115, 104)) // armed at 111

	// A retreating bar must not move the stop back down.
	s.Observe(bar(112, 108))
	if level, _ := s.Level(); level != 111 {
		t.Errorf("level after retreat = %v, want 111", level)
	}
	if s.HighWaterMark() != 15 {
		t.Errorf("high-water mark must not decrease, got %v", s.HighWaterMark())
	}

	// A new extreme ratchets it further.
	s.Observe(bar(120, 110))
	if level, _ := s.Level(); level != 116 {
		t.Errorf("level after new extreme = %v, want 116", level)
	}
}

func TestStop_Short(t *testing.T) {
	s := New(100, core.SideShort, core.TrailingParams{TriggerPoints: 10, OffsetPoints: 4})

	s.Observe(bar(96, 88)) // favorable excursion 12 points
	if !s.Armed() {
		t.Fatal("short stop should arm at 12 points")
	}
	level, _ := s.Level()
	if level != 92 { // entry - (12 - 4)
		t.Errorf("short level = %v, want 92", level)
	}

	// Adverse move keeps the level.
	s.Observe(bar(95, 91))
	if level, _ := s.Level(); level != 92 {
		t.Errorf("short level after bounce = %v, want 92", level)
	}
}

func TestStop_MonotonicHighWater(t *testing.T) {
	s := New(100, core.SideLong, core.TrailingParams{TriggerPoints: 50, OffsetPoints: 10})

	highs := []float64{103, 101, 107, 102, 106}
	var best float64
	for _, h := range highs {
		s.Observe(bar(h, h-3))
		if h-100 > best {
			best = h - 100
		}
		if s.HighWaterMark() != best {
			t.Fatalf("high-water mark = %v, want %v after high %v", s.HighWaterMark(), best, h)
		}
	}
	if s.Armed() {
		t.Error("should not arm below trigger")
	}
	if _, ok := s.Level(); ok {
		t.Error("Level() must report unarmed")
	}
}
