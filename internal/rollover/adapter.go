// Package rollover resolves prices across futures contract months.
//
// When the fine-resolution price series switches ticker mid-trade (a
// front-month roll), prices quoted on the new contract must be expressed
// in the entry contract's terms before any stop/target comparison.
// A missing spread is a loud failure, never a silent passthrough.
package rollover

import (
	"fmt"
	"sort"
	"time"

	"github.com/davidhsu/execsim/internal/core"
)

type pair struct {
	from string
	to   string
}

// Table is the time-indexed calendar-spread reference table. It is
// immutable after construction and safe for concurrent readers.
type Table struct {
	entries map[pair][]core.CalendarSpread // sorted ascending by time
}

// NewTable builds a lookup table from raw spread records. Records may
// arrive in any order; they are bucketed per symbol pair and sorted.
func NewTable(spreads []core.CalendarSpread) (*Table, error) {
	t := &Table{entries: make(map[pair][]core.CalendarSpread)}
	for _, s := range spreads {
		if s.FromSymbol == "" || s.ToSymbol == "" {
			return nil, core.WrapError(core.ErrDataLoad,
				fmt.Errorf("calendar spread at %s with empty symbol", s.Time.Format(time.RFC3339)))
		}
		if s.Time.IsZero() {
			return nil, core.WrapError(core.ErrDataLoad,
				fmt.Errorf("calendar spread %s->%s with zero timestamp", s.FromSymbol, s.ToSymbol))
		}
		k := pair{from: s.FromSymbol, to: s.ToSymbol}
		t.entries[k] = append(t.entries[k], s)
	}
	for k := range t.entries {
		es := t.entries[k]
		sort.Slice(es, func(i, j int) bool { return es[i].Time.Before(es[j].Time) })
	}
	return t, nil
}

// Spread returns the additive offset that expresses a price quoted on
// from in to terms, using the nearest entry at or before ts. The inverse
// pair is consulted with a negated value when the direct pair is absent.
func (t *Table) Spread(from, to string, ts time.Time) (float64, error) {
	if from == to {
		return 0, nil
	}
	if v, ok := t.lookup(pair{from: from, to: to}, ts); ok {
		return v, nil
	}
	if v, ok := t.lookup(pair{from: to, to: from}, ts); ok {
		return -v, nil
	}
	return 0, core.WrapError(core.ErrNoConversion,
		fmt.Errorf("%s->%s at %s", from, to, ts.Format(time.RFC3339)))
}

// Convert expresses price quoted on from in to terms at ts.
func (t *Table) Convert(price float64, from, to string, ts time.Time) (float64, error) {
	spread, err := t.Spread(from, to, ts)
	if err != nil {
		return 0, err
	}
	return price + spread, nil
}

// ConvertCandle rewrites all four price fields of a candle into the
// target symbol's terms. Volume and timestamp are unchanged.
func (t *Table) ConvertCandle(c core.Candle, to string) (core.Candle, error) {
	spread, err := t.Spread(c.Symbol, to, c.Time)
	if err != nil {
		return core.Candle{}, err
	}
	out := c
	out.Symbol = to
	out.Open += spread
	out.High += spread
	out.Low += spread
	out.Close += spread
	return out, nil
}

func (t *Table) lookup(k pair, ts time.Time) (float64, bool) {
	es, ok := t.entries[k]
	if !ok || len(es) == 0 {
		return 0, false
	}
	// First entry strictly after ts; the one before it governs.
	i := sort.Search(len(es), func(i int) bool { return es[i].Time.After(ts) })
	if i == 0 {
		return 0, false
	}
	return es[i-1].Value, true
}
