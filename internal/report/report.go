// Package report serializes run output: one flat record per completed
// trade, discarded orders reported separately so fill-rate can be
// audited, and a console table for interactive use.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/davidhsu/execsim/internal/engine"
)

// TradeRecord is the flat serialized form of one completed trade.
// Monetary fields are decimal strings so records are byte-stable
// across identical runs.
type TradeRecord struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Strategy       string  `json:"strategy"`
	Status         string  `json:"status"`
	EntryTime      string  `json:"entry_time"`
	ActualEntry    float64 `json:"actual_entry"`
	StopLoss       float64 `json:"stop_loss"`
	TakeProfit     float64 `json:"take_profit"`
	TrailingArmed  bool    `json:"trailing_armed"`
	HighWaterMark  float64 `json:"high_water_mark"`
	TrailingPoints float64 `json:"trailing_stop_points"`
	BarsSinceEntry int     `json:"bars_since_entry"`
	ExitTime       string  `json:"exit_time,omitempty"`
	ActualExit     float64 `json:"actual_exit,omitempty"`
	ExitReason     string  `json:"exit_reason,omitempty"`
	GrossPnL       string  `json:"gross_pnl,omitempty"`
	NetPnL         string  `json:"net_pnl,omitempty"`
	Commission     string  `json:"commission,omitempty"`
}

// DiscardedRecord is the flat form of a staged order that never filled.
type DiscardedRecord struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Reference   float64 `json:"reference_price"`
	SignalTime  string  `json:"signal_time"`
	BarsWaited  int     `json:"bars_waited"`
	DiscardedAt string  `json:"discarded_at"`
}

// Artifact is the complete serialized output of one run.
type Artifact struct {
	Trades    []TradeRecord     `json:"trades"`
	Open      []TradeRecord     `json:"open"`
	Discarded []DiscardedRecord `json:"discarded"`
	FillRate  float64           `json:"fill_rate"`
}

// NewTradeRecord flattens a trade.
func NewTradeRecord(t *engine.Trade) TradeRecord {
	r := TradeRecord{
		ID:             t.ID,
		Symbol:         t.Symbol,
		Side:           string(t.Side),
		Strategy:       t.Signal.Strategy,
		Status:         string(t.Status),
		EntryTime:      t.EntryTime.UTC().Format(time.RFC3339),
		ActualEntry:    t.ActualEntry,
		StopLoss:       t.StopLoss,
		TakeProfit:     t.TakeProfit,
		BarsSinceEntry: t.BarsSinceEntry,
	}
	if t.Trailing != nil {
		r.TrailingArmed = t.Trailing.Armed()
		r.HighWaterMark = t.Trailing.HighWaterMark()
		r.TrailingPoints = t.Trailing.StopPoints()
	}
	if t.Status == engine.StatusCompleted {
		r.ExitTime = t.ExitTime.UTC().Format(time.RFC3339)
		r.ActualExit = t.ActualExit
		r.ExitReason = string(t.ExitReason)
		r.GrossPnL = t.GrossPnL.String()
		r.NetPnL = t.NetPnL.String()
		r.Commission = t.Commission.String()
	}
	return r
}

// NewDiscardedRecord flattens a discarded order.
func NewDiscardedRecord(d engine.DiscardedOrder) DiscardedRecord {
	return DiscardedRecord{
		ID:          d.ID,
		Symbol:      d.Signal.Symbol,
		Side:        string(d.Signal.Side),
		Reference:   d.Signal.Price,
		SignalTime:  d.Signal.GeneratedAt.UTC().Format(time.RFC3339),
		BarsWaited:  d.BarsWaited,
		DiscardedAt: d.DiscardedAt.UTC().Format(time.RFC3339),
	}
}

// NewArtifact flattens a full run result.
func NewArtifact(res *engine.Result) Artifact {
	a := Artifact{
		Trades:    make([]TradeRecord, 0, len(res.Trades)),
		Open:      make([]TradeRecord, 0, len(res.Open)),
		Discarded: make([]DiscardedRecord, 0, len(res.Discarded)),
		FillRate:  res.FillRate(),
	}
	for _, t := range res.Trades {
		a.Trades = append(a.Trades, NewTradeRecord(t))
	}
	for _, t := range res.Open {
		a.Open = append(a.Open, NewTradeRecord(t))
	}
	for _, d := range res.Discarded {
		a.Discarded = append(a.Discarded, NewDiscardedRecord(d))
	}
	return a
}

// Marshal renders the artifact as indented JSON. The layout is fully
// deterministic: identical runs produce identical bytes.
func (a Artifact) Marshal() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// WriteTable prints completed trades and the fill-rate audit line.
func WriteTable(w io.Writer, res *engine.Result) {
	if len(res.Trades) == 0 {
		fmt.Fprintln(w, "no completed trades")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Side", "Symbol", "Entry", "Exit", "Reason", "Bars", "Net PnL")
		for _, t := range res.Trades {
			table.Append(
				t.ID,
				string(t.Side),
				t.Symbol,
				fmt.Sprintf("%.2f @ %s", t.ActualEntry, t.EntryTime.UTC().Format("01-02 15:04")),
				fmt.Sprintf("%.2f @ %s", t.ActualExit, t.ExitTime.UTC().Format("01-02 15:04")),
				string(t.ExitReason),
				fmt.Sprintf("%d", t.BarsSinceEntry),
				t.NetPnL.StringFixed(2),
			)
		}
		table.Render()
	}

	filled := len(res.Trades) + len(res.Open)
	staged := filled + len(res.Discarded)
	fmt.Fprintf(w, "orders staged %d, filled %d, discarded unfilled %d (fill rate %.1f%%)\n",
		staged, filled, len(res.Discarded), res.FillRate()*100)
	if len(res.Open) > 0 {
		fmt.Fprintf(w, "%d trade(s) still open at end of data\n", len(res.Open))
	}
}
