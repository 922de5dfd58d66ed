package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/exits"
	"github.com/davidhsu/execsim/internal/trailing"
)

// Status is the lifecycle state of a trade.
type Status string

const (
	// StatusStaged means the signal is awaiting fill confirmation.
	StatusStaged Status = "staged"
	// StatusActive means the trade is open in the market.
	StatusActive Status = "active"
	// StatusCompleted means the trade is closed with exactly one exit
	// reason and exit price.
	StatusCompleted Status = "completed"
)

// Trade is the mutable unit of state for one position. Only the state
// machine mutates it.
type Trade struct {
	ID     string
	Side   core.Side
	Symbol string // instrument at entry
	Signal core.Signal

	Status      Status
	ActualEntry float64
	EntryTime   time.Time
	StopLoss    float64
	TakeProfit  float64
	Trailing    *trailing.Stop // nil when trailing disabled

	// BarsSinceEntry counts fine bars while active. It is 0 at the bar
	// of fill and never decreases.
	BarsSinceEntry int

	ExitReason exits.Reason
	ActualExit float64
	ExitTime   time.Time
	Commission decimal.Decimal
	GrossPnL   decimal.Decimal
	NetPnL     decimal.Decimal

	barsWaited   int     // fine bars examined while staged
	convFailures int     // consecutive bars with no contract-roll price
	lastPrice    float64 // last known close in entry-contract terms
}

// DiscardedOrder records a staged order that never filled within its
// timeout window. Reported separately so fill-rate can be audited.
type DiscardedOrder struct {
	ID          string
	Signal      core.Signal
	BarsWaited  int
	DiscardedAt time.Time
}
