package strategy

import (
	"fmt"

	"github.com/davidhsu/execsim/internal/core"
)

// BreakoutConfig configures the channel breakout reference strategy.
type BreakoutConfig struct {
	Lookback    int     // channel length in coarse bars
	RiskReward  float64 // target distance as a multiple of stop distance
	MaxHoldBars int     // fine bars before a timeout exit, 0 for none
	Trailing    *core.TrailingParams
}

// Validate checks the strategy parameters before a run starts.
func (c BreakoutConfig) Validate() error {
	if c.Lookback < 2 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("breakout lookback must be at least 2, got %d", c.Lookback))
	}
	if c.RiskReward <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("breakout risk/reward must be positive, got %.2f", c.RiskReward))
	}
	return nil
}

// Breakout is a deterministic Donchian-channel breakout strategy used
// as the reference signal producer for runs and tests. A signal fires
// only on the bar that crosses out of the channel, not on every bar
// beyond it.
type Breakout struct {
	cfg BreakoutConfig
}

// NewBreakout creates the reference breakout strategy.
func NewBreakout(cfg BreakoutConfig) (*Breakout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breakout{cfg: cfg}, nil
}

// Name returns the strategy identifier.
func (b *Breakout) Name() string { return "channel_breakout" }

// Analyze emits a long signal when the close breaks above the prior
// channel high and a short signal when it breaks below the prior low.
func (b *Breakout) Analyze(ctx Context) ([]core.Signal, error) {
	n := len(ctx.Candles)
	if n < b.cfg.Lookback+2 {
		return nil, nil
	}

	cur := ctx.Current()
	prev := ctx.Candles[n-2]
	hi, lo := channel(ctx.Candles[n-1-b.cfg.Lookback : n-1])

	var sig core.Signal
	switch {
	case cur.Close > hi && prev.Close <= hi:
		risk := cur.Close - lo
		sig = core.Signal{
			Symbol:     cur.Symbol,
			Side:       core.SideLong,
			Price:      cur.Close,
			StopLoss:   lo,
			TakeProfit: cur.Close + b.cfg.RiskReward*risk,
		}
	case cur.Close < lo && prev.Close >= lo:
		risk := hi - cur.Close
		sig = core.Signal{
			Symbol:     cur.Symbol,
			Side:       core.SideShort,
			Price:      cur.Close,
			StopLoss:   hi,
			TakeProfit: cur.Close - b.cfg.RiskReward*risk,
		}
	default:
		return nil, nil
	}

	sig.Trailing = b.cfg.Trailing
	sig.MaxHoldBars = b.cfg.MaxHoldBars
	sig.Strategy = b.Name()
	sig.GeneratedAt = cur.Time
	return []core.Signal{sig}, nil
}

func channel(candles []core.Candle) (hi, lo float64) {
	hi, lo = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	return hi, lo
}
