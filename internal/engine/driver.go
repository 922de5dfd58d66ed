package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/metrics"
	"github.com/davidhsu/execsim/internal/strategy"
)

// Result is the output of one simulation run: completed trades ordered
// by entry time, trades still open at end of data, and staged orders
// that never filled.
type Result struct {
	Trades    []*Trade
	Open      []*Trade
	Discarded []DiscardedOrder
}

// FillRate returns filled / staged, or 0 when nothing was staged.
func (r *Result) FillRate() float64 {
	filled := len(r.Trades) + len(r.Open)
	staged := filled + len(r.Discarded)
	if staged == 0 {
		return 0
	}
	return float64(filled) / float64(staged)
}

// Driver feeds time-ordered bars of two resolutions into the state
// machine. Coarse bars go to the strategy collaborator; fine bars go
// to every staged and active trade in staging order. One driver owns
// one run's entire mutable state.
type Driver struct {
	machine *Machine
	strat   strategy.Strategy
	log     *zap.Logger
	metrics *metrics.Registry
}

// NewDriver creates a Driver. The metrics registry may be nil.
func NewDriver(machine *Machine, strat strategy.Strategy, log *zap.Logger, reg *metrics.Registry) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{machine: machine, strat: strat, log: log, metrics: reg}
}

// Run executes one deterministic backtest over the two candle streams.
// Bars are consumed in non-decreasing timestamp order; on equal
// timestamps the fine bar is processed first, so a signal issued at a
// coarse close only ever fills on strictly later fine bars.
//
// On context cancellation, still-active trades are flattened to the
// forced-close terminal state and the partial result is returned with
// the context's error.
func (d *Driver) Run(ctx context.Context, coarse, fine []core.Candle) (*Result, error) {
	if len(fine) == 0 {
		return nil, core.WrapError(core.ErrNoData, errors.New("empty fine candle stream"))
	}
	coarse = d.sanitize(coarse, "coarse")
	fine = d.sanitize(fine, "fine")
	if len(fine) == 0 {
		return nil, core.WrapError(core.ErrNoData, errors.New("no valid fine candles after validation"))
	}

	started := time.Now()
	res := &Result{}
	var open []*Trade
	var lastTs time.Time

	ci, fi := 0, 0
	for ci < len(coarse) || fi < len(fine) {
		select {
		case <-ctx.Done():
			d.abort(open, res, lastTs)
			d.finish(res, "aborted", started)
			return res, ctx.Err()
		default:
		}

		if fi < len(fine) && (ci >= len(coarse) || !fine[fi].Time.After(coarse[ci].Time)) {
			bar := fine[fi]
			open = d.stepFine(bar, fi == len(fine)-1, open, res)
			lastTs = bar.Time
			fi++
			continue
		}

		d.stepCoarse(coarse[:ci+1], &open)
		lastTs = coarse[ci].Time
		ci++
	}

	// End of data: staged orders are discarded unfilled; active trades
	// without a force-flat exit remain open and are reported as such.
	for _, t := range open {
		switch t.Status {
		case StatusStaged:
			res.Discarded = append(res.Discarded, DiscardedOrder{
				ID:          t.ID,
				Signal:      t.Signal,
				BarsWaited:  t.barsWaited,
				DiscardedAt: lastTs,
			})
			d.metrics.OrderDiscarded()
		case StatusActive:
			res.Open = append(res.Open, t)
		}
	}

	sort.SliceStable(res.Trades, func(i, j int) bool {
		return res.Trades[i].EntryTime.Before(res.Trades[j].EntryTime)
	})

	d.finish(res, "completed", started)
	return res, nil
}

func (d *Driver) stepCoarse(history []core.Candle, open *[]*Trade) {
	sigs, err := d.strat.Analyze(strategy.Context{Candles: history})
	if err != nil {
		d.log.Warn("strategy analysis failed",
			zap.String("strategy", d.strat.Name()),
			zap.Time("bar", history[len(history)-1].Time),
			zap.Error(err))
		return
	}
	for _, sig := range sigs {
		t, err := d.machine.Stage(sig)
		if err != nil {
			// A malformed signal aborts only itself, never the run.
			d.log.Warn("signal rejected", zap.String("symbol", sig.Symbol), zap.Error(err))
			d.metrics.SignalRejected()
			continue
		}
		*open = append(*open, t)
		d.metrics.OrderStaged()
	}
}

func (d *Driver) stepFine(bar core.Candle, sessionEnd bool, open []*Trade, res *Result) []*Trade {
	kept := open[:0]
	for _, t := range open {
		transition, err := d.machine.OnFineBar(t, bar, sessionEnd)
		if err != nil {
			d.log.Warn("price conversion unavailable",
				zap.String("trade", t.ID),
				zap.String("entry_symbol", t.Symbol),
				zap.String("bar_symbol", bar.Symbol),
				zap.Time("time", bar.Time))
		}
		switch transition {
		case TransitionFilled:
			d.metrics.OrderFilled()
			kept = append(kept, t)
		case TransitionDiscarded:
			res.Discarded = append(res.Discarded, DiscardedOrder{
				ID:          t.ID,
				Signal:      t.Signal,
				BarsWaited:  t.barsWaited,
				DiscardedAt: bar.Time,
			})
			d.metrics.OrderDiscarded()
		case TransitionCompleted:
			res.Trades = append(res.Trades, t)
			d.metrics.TradeCompleted(string(t.ExitReason))
		default:
			kept = append(kept, t)
		}
	}
	return kept
}

// abort honors a run-level cancellation: active trades are forced flat
// rather than left open indefinitely.
func (d *Driver) abort(open []*Trade, res *Result, ts time.Time) {
	for _, t := range open {
		switch t.Status {
		case StatusStaged:
			res.Discarded = append(res.Discarded, DiscardedOrder{
				ID:          t.ID,
				Signal:      t.Signal,
				BarsWaited:  t.barsWaited,
				DiscardedAt: ts,
			})
			d.metrics.OrderDiscarded()
		case StatusActive:
			d.machine.ForceClose(t, ts)
			res.Trades = append(res.Trades, t)
			d.metrics.TradeCompleted(string(t.ExitReason))
		}
	}
	sort.SliceStable(res.Trades, func(i, j int) bool {
		return res.Trades[i].EntryTime.Before(res.Trades[j].EntryTime)
	})
}

func (d *Driver) finish(res *Result, status string, started time.Time) {
	d.metrics.RunFinished(status, time.Since(started).Seconds())
	d.log.Info("run finished",
		zap.String("status", status),
		zap.Int("trades", len(res.Trades)),
		zap.Int("open", len(res.Open)),
		zap.Int("discarded", len(res.Discarded)))
}

// sanitize drops malformed or out-of-order candles, logging each
// rejection. A bad bar aborts only itself, not the run.
func (d *Driver) sanitize(candles []core.Candle, stream string) []core.Candle {
	out := make([]core.Candle, 0, len(candles))
	lastPerSymbol := make(map[string]time.Time)
	var last time.Time
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			d.log.Warn("candle rejected", zap.String("stream", stream), zap.Error(err))
			continue
		}
		if c.Time.Before(last) {
			d.log.Warn("candle rejected",
				zap.String("stream", stream),
				zap.Error(core.WrapError(core.ErrNonMonotonic,
					errors.New(c.Symbol+" at "+c.Time.Format(time.RFC3339)))))
			continue
		}
		if prev, ok := lastPerSymbol[c.Symbol]; ok && c.Time.Equal(prev) {
			d.log.Warn("duplicate candle timestamp rejected",
				zap.String("stream", stream),
				zap.String("symbol", c.Symbol),
				zap.Time("time", c.Time))
			continue
		}
		lastPerSymbol[c.Symbol] = c.Time
		last = c.Time
		out = append(out, c)
	}
	return out
}
