package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/engine"
	"github.com/davidhsu/execsim/internal/exits"
)

var t0 = time.Date(2024, 3, 4, 9, 36, 0, 0, time.UTC)

func completedTrade() *engine.Trade {
	return &engine.Trade{
		ID:     "T-000001",
		Side:   core.SideLong,
		Symbol: "ESH4",
		Signal: core.Signal{
			Symbol: "ESH4", Side: core.SideLong,
			Price: 100, StopLoss: 95, TakeProfit: 110,
			Strategy:    "channel_breakout",
			GeneratedAt: t0.Add(-time.Minute),
		},
		Status:         engine.StatusCompleted,
		ActualEntry:    100,
		EntryTime:      t0,
		StopLoss:       95,
		TakeProfit:     110,
		BarsSinceEntry: 2,
		ExitReason:     exits.ReasonTakeProfit,
		ActualExit:     110,
		ExitTime:       t0.Add(2 * time.Minute),
		Commission:     decimal.RequireFromString("2.5"),
		GrossPnL:       decimal.NewFromInt(500),
		NetPnL:         decimal.RequireFromString("497.5"),
	}
}

func testResult() *engine.Result {
	return &engine.Result{
		Trades: []*engine.Trade{completedTrade()},
		Discarded: []engine.DiscardedOrder{{
			ID: "T-000002",
			Signal: core.Signal{
				Symbol: "ESH4", Side: core.SideShort,
				Price: 120, StopLoss: 125,
				GeneratedAt: t0,
			},
			BarsWaited:  3,
			DiscardedAt: t0.Add(5 * time.Minute),
		}},
	}
}

func TestNewTradeRecord(t *testing.T) {
	r := NewTradeRecord(completedTrade())

	if r.ID != "T-000001" || r.Side != "long" || r.Strategy != "channel_breakout" {
		t.Errorf("identity fields = %+v", r)
	}
	if r.EntryTime != "2024-03-04T09:36:00Z" || r.ExitTime != "2024-03-04T09:38:00Z" {
		t.Errorf("times = %q / %q", r.EntryTime, r.ExitTime)
	}
	if r.ExitReason != "take_profit" || r.ActualExit != 110 {
		t.Errorf("exit = %q at %v", r.ExitReason, r.ActualExit)
	}
	// Money fields serialize as decimal strings, not floats.
	if r.GrossPnL != "500" || r.NetPnL != "497.5" || r.Commission != "2.5" {
		t.Errorf("money = %q / %q / %q", r.GrossPnL, r.NetPnL, r.Commission)
	}
}

func TestNewTradeRecord_OpenTradeOmitsExit(t *testing.T) {
	tr := completedTrade()
	tr.Status = engine.StatusActive
	r := NewTradeRecord(tr)

	if r.ExitTime != "" || r.ExitReason != "" || r.NetPnL != "" {
		t.Errorf("open trade must not carry exit fields: %+v", r)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "exit_reason") {
		t.Errorf("exit fields should be omitted from JSON: %s", out)
	}
}

func TestArtifact(t *testing.T) {
	a := NewArtifact(testResult())

	if len(a.Trades) != 1 || len(a.Discarded) != 1 {
		t.Fatalf("artifact shape = %d trades, %d discarded", len(a.Trades), len(a.Discarded))
	}
	if a.FillRate != 0.5 {
		t.Errorf("fill rate = %v, want 0.5", a.FillRate)
	}
	d := a.Discarded[0]
	if d.ID != "T-000002" || d.BarsWaited != 3 || d.Reference != 120 {
		t.Errorf("discarded record = %+v", d)
	}
}

func TestArtifact_MarshalDeterministic(t *testing.T) {
	first, err := NewArtifact(testResult()).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	second, err := NewArtifact(testResult()).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical results must marshal to identical bytes")
	}

	var round Artifact
	if err := json.Unmarshal(first, &round); err != nil {
		t.Fatalf("artifact does not round-trip: %v", err)
	}
	if round.Trades[0].NetPnL != "497.5" {
		t.Errorf("net pnl after round trip = %q", round.Trades[0].NetPnL)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, testResult())

	out := buf.String()
	for _, want := range []string{"T-000001", "take_profit", "497.50", "fill rate 50.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, &engine.Result{})

	if !strings.Contains(buf.String(), "no completed trades") {
		t.Errorf("output = %q", buf.String())
	}
}
