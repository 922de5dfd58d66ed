package fill

import (
	"errors"
	"testing"
	"time"

	"github.com/davidhsu/execsim/internal/core"
)

var barTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func bar(open, high, low, close float64) core.Candle {
	return core.Candle{Symbol: "ESH4", Open: open, High: high, Low: low, Close: close, Time: barTime}
}

func longSignal(price float64) core.Signal {
	return core.Signal{
		Symbol: "ESH4", Side: core.SideLong,
		Price: price, StopLoss: price - 10, TakeProfit: price + 20,
		GeneratedAt: barTime.Add(-time.Minute),
	}
}

func shortSignal(price float64) core.Signal {
	return core.Signal{
		Symbol: "ESH4", Side: core.SideShort,
		Price: price, StopLoss: price + 10, TakeProfit: price - 20,
		GeneratedAt: barTime.Add(-time.Minute),
	}
}

func mustResolver(t *testing.T, p Policy) *Resolver {
	t.Helper()
	r, err := NewResolver(p)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"valid market", Policy{Mode: ModeMarket, MarketPrice: PriceOpen, TimeoutBars: 5}, false},
		{"valid limit", Policy{Mode: ModeLimit, MarketPrice: PriceTouch, TimeoutBars: 1}, false},
		{"bad mode", Policy{Mode: "stop", MarketPrice: PriceOpen, TimeoutBars: 5}, true},
		{"bad convention", Policy{Mode: ModeMarket, MarketPrice: "vwap", TimeoutBars: 5}, true},
		{"zero timeout", Policy{Mode: ModeMarket, MarketPrice: PriceOpen, TimeoutBars: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestResolver_MarketFill(t *testing.T) {
	tests := []struct {
		name       string
		convention MarketPrice
		bar        core.Candle
		wantPrice  float64
		wantFill   bool
	}{
		{"open convention", PriceOpen, bar(101, 103, 99, 102), 101, true},
		{"close convention", PriceClose, bar(101, 103, 99, 102), 102, true},
		{"touch convention", PriceTouch, bar(101, 103, 99, 102), 100, true},
		{"range misses reference", PriceOpen, bar(103, 105, 101, 104), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustResolver(t, Policy{Mode: ModeMarket, MarketPrice: tt.convention, TimeoutBars: 5})
			f, outcome := r.Check(longSignal(100), 0, tt.bar)
			if tt.wantFill {
				if outcome != OutcomeFilled {
					t.Fatalf("outcome = %v, want filled", outcome)
				}
				if f.Price != tt.wantPrice {
					t.Errorf("fill price = %v, want %v", f.Price, tt.wantPrice)
				}
				if !f.Time.Equal(tt.bar.Time) {
					t.Errorf("fill time = %v, want bar time", f.Time)
				}
			} else if outcome == OutcomeFilled {
				t.Errorf("unexpected fill at %v", f.Price)
			}
		})
	}
}

func TestResolver_LimitFill(t *testing.T) {
	r := mustResolver(t, Policy{Mode: ModeLimit, MarketPrice: PriceOpen, TimeoutBars: 5})

	t.Run("long touch fills at limit", func(t *testing.T) {
		f, outcome := r.Check(longSignal(100), 0, bar(102, 103, 99.5, 101))
		if outcome != OutcomeFilled || f.Price != 100 {
			t.Errorf("got %v %v, want fill at 100", outcome, f.Price)
		}
	})
	t.Run("long gap-through fills at open", func(t *testing.T) {
		f, outcome := r.Check(longSignal(100), 0, bar(98, 99, 97, 98.5))
		if outcome != OutcomeFilled || f.Price != 98 {
			t.Errorf("got %v %v, want fill at open 98", outcome, f.Price)
		}
	})
	t.Run("long untouched stays pending", func(t *testing.T) {
		_, outcome := r.Check(longSignal(100), 0, bar(102, 104, 100.5, 103))
		if outcome != OutcomePending {
			t.Errorf("outcome = %v, want pending", outcome)
		}
	})
	t.Run("short touch fills at limit", func(t *testing.T) {
		f, outcome := r.Check(shortSignal(100), 0, bar(98, 100.5, 97, 99))
		if outcome != OutcomeFilled || f.Price != 100 {
			t.Errorf("got %v %v, want fill at 100", outcome, f.Price)
		}
	})
	t.Run("short gap-through fills at open", func(t *testing.T) {
		f, outcome := r.Check(shortSignal(100), 0, bar(103, 104, 102, 103.5))
		if outcome != OutcomeFilled || f.Price != 103 {
			t.Errorf("got %v %v, want fill at open 103", outcome, f.Price)
		}
	})
}

func TestResolver_Timeout(t *testing.T) {
	r := mustResolver(t, Policy{Mode: ModeMarket, MarketPrice: PriceOpen, TimeoutBars: 3})
	miss := bar(110, 112, 108, 111) // never touches 100

	sig := longSignal(100)
	for waited := 0; waited < 2; waited++ {
		if _, outcome := r.Check(sig, waited, miss); outcome != OutcomePending {
			t.Fatalf("bar %d: outcome = %v, want pending", waited, outcome)
		}
	}
	// Third examined bar exhausts the window.
	if _, outcome := r.Check(sig, 2, miss); outcome != OutcomeExpired {
		t.Errorf("outcome = %v, want expired", outcome)
	}

	if !r.Expired(3) || r.Expired(2) {
		t.Errorf("Expired() boundary wrong")
	}
}

func TestResolver_FillBeatsTimeoutOnSameBar(t *testing.T) {
	r := mustResolver(t, Policy{Mode: ModeMarket, MarketPrice: PriceTouch, TimeoutBars: 1})
	f, outcome := r.Check(longSignal(100), 0, bar(101, 103, 99, 102))
	if outcome != OutcomeFilled || f.Price != 100 {
		t.Errorf("fill should win over expiry on the qualifying bar, got %v %v", outcome, f.Price)
	}
}
