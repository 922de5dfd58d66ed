package rollover

import (
	"errors"
	"testing"
	"time"

	"github.com/davidhsu/execsim/internal/core"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]core.CalendarSpread{
		{Time: t0.Add(48 * time.Hour), FromSymbol: "ESM4", ToSymbol: "ESH4", Value: -2.75},
		{Time: t0, FromSymbol: "ESM4", ToSymbol: "ESH4", Value: -2.50},
		{Time: t0.Add(24 * time.Hour), FromSymbol: "ESM4", ToSymbol: "ESH4", Value: -2.25},
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return tbl
}

func TestTable_Spread(t *testing.T) {
	tbl := newTestTable(t)

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"exact entry", t0, -2.50},
		{"between entries uses earlier", t0.Add(30 * time.Hour), -2.25},
		{"after last entry", t0.Add(100 * time.Hour), -2.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.Spread("ESM4", "ESH4", tt.at)
			if err != nil {
				t.Fatalf("Spread() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Spread() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTable_SpreadInversePair(t *testing.T) {
	tbl := newTestTable(t)

	got, err := tbl.Spread("ESH4", "ESM4", t0)
	if err != nil {
		t.Fatalf("Spread() error = %v", err)
	}
	if got != 2.50 {
		t.Errorf("inverse spread = %v, want 2.50", got)
	}
}

func TestTable_SpreadSameSymbol(t *testing.T) {
	tbl := newTestTable(t)

	got, err := tbl.Spread("ESM4", "ESM4", t0)
	if err != nil || got != 0 {
		t.Errorf("same-symbol spread = %v, %v, want 0, nil", got, err)
	}
}

func TestTable_SpreadMissing(t *testing.T) {
	tbl := newTestTable(t)

	// Before the first entry
	if _, err := tbl.Spread("ESM4", "ESH4", t0.Add(-time.Hour)); !errors.Is(err, core.ErrNoConversion) {
		t.Errorf("expected ErrNoConversion before first entry, got %v", err)
	}
	// Unknown pair
	if _, err := tbl.Spread("NQM4", "NQH4", t0); !errors.Is(err, core.ErrNoConversion) {
		t.Errorf("expected ErrNoConversion for unknown pair, got %v", err)
	}
}

func TestTable_ConvertCandle(t *testing.T) {
	tbl := newTestTable(t)

	in := core.Candle{
		Symbol: "ESM4",
		Open:   5000, High: 5010, Low: 4990, Close: 5005,
		Volume: 120,
		Time:   t0,
	}
	out, err := tbl.ConvertCandle(in, "ESH4")
	if err != nil {
		t.Fatalf("ConvertCandle() error = %v", err)
	}
	if out.Symbol != "ESH4" {
		t.Errorf("Symbol = %v, want ESH4", out.Symbol)
	}
	if out.Open != 4997.5 || out.High != 5007.5 || out.Low != 4987.5 || out.Close != 5002.5 {
		t.Errorf("converted prices = %+v", out)
	}
	if out.Volume != in.Volume || !out.Time.Equal(in.Time) {
		t.Errorf("volume/time should be unchanged")
	}
}

func TestNewTable_Invalid(t *testing.T) {
	if _, err := NewTable([]core.CalendarSpread{{Time: t0, FromSymbol: "", ToSymbol: "X"}}); !errors.Is(err, core.ErrDataLoad) {
		t.Errorf("expected ErrDataLoad for empty symbol, got %v", err)
	}
	if _, err := NewTable([]core.CalendarSpread{{FromSymbol: "A", ToSymbol: "B"}}); !errors.Is(err, core.ErrDataLoad) {
		t.Errorf("expected ErrDataLoad for zero timestamp, got %v", err)
	}
}
