// Package execution implements the Execution Engine: it slices an
// accepted order per an algorithm, scores and selects a liquidity
// provider per slice, and reports fills back to the Order Manager.
package execution

import (
	"sync"
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Algorithm is the closed set of slicing algorithms (spec §4.2).
type Algorithm string

const (
	AlgoTWAP                   Algorithm = "TWAP"
	AlgoVWAP                   Algorithm = "VWAP"
	AlgoImplementationShortfall Algorithm = "Implementation_Shortfall"
	AlgoPOV                    Algorithm = "POV"
	AlgoMarketMaking           Algorithm = "Market_Making"
)

// Urgency tags a slice's priority for provider/timeout handling.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ContextStatus is the execution context's own lifecycle (distinct from
// the parent order's OM status).
type ContextStatus string

const (
	ContextPending   ContextStatus = "pending"
	ContextRunning   ContextStatus = "running"
	ContextCompleted ContextStatus = "completed"
	ContextTimeout   ContextStatus = "timeout"
	ContextError     ContextStatus = "error"
)

// Options customizes one Execute() call (spec §4.2 "Public contract").
type Options struct {
	Algorithm          Algorithm // empty: use default selection rule
	MaxSlippage        float64   // fraction; 0 means use engine default
	TimeLimit          time.Duration
	PreferredProviders []string
}

// Slice is what an algorithm hands the dispatcher for one tick.
type Slice struct {
	Quantity    money.Amount
	Urgency     Urgency
	TargetPrice money.Amount // zero: derive from quote side (bid/ask)
}

// MarketSnapshot is the bid/ask/spread the dispatcher fetches once per
// tick per pair, handed to algorithms that need it (Market_Making).
type MarketSnapshot struct {
	Bid    money.Amount
	Ask    money.Amount
	Spread money.Amount
}

// Context is the Execution Engine's transient per-order state (spec §3
// "Ownership": the EE owns transient ExecutionContexts ... references OM
// orders by id only).
type Context struct {
	mu sync.Mutex

	ExecutionID string
	OrderID     string
	UserID      string
	Pair        string
	Side        oms.Side
	Algorithm   Algorithm
	Options     Options

	Remaining           money.Amount
	FilledQuantity      money.Amount
	AveragePrice        money.Amount
	FirstFillPrice       money.Amount
	SlippageBps         float64
	StartTime           time.Time
	EndTime             time.Time
	Status              ContextStatus
	ConsecutiveFailures int
	MaxPartialFills     int
}

func (c *Context) elapsed(now time.Time) time.Duration { return now.Sub(c.StartTime) }

func (c *Context) timeLimit() time.Duration {
	if c.Options.TimeLimit > 0 {
		return c.Options.TimeLimit
	}
	return 30 * time.Second
}

func (c *Context) maxSlippage() float64 {
	if c.Options.MaxSlippage > 0 {
		return c.Options.MaxSlippage
	}
	return 0.005
}

func (c *Context) recordFill(qty, price money.Amount) {
	if money.IsZero(c.FilledQuantity) {
		c.FirstFillPrice = price
	}
	totalCost, _ := money.Mul(c.AveragePrice, c.FilledQuantity)
	contrib, _ := money.Mul(qty, price)
	newFilled, _ := money.Add(c.FilledQuantity, qty)
	newCost, _ := money.Add(totalCost, contrib)
	if !money.IsZero(newFilled) {
		c.AveragePrice, _ = money.Quo(newCost, newFilled)
	}
	c.FilledQuantity = newFilled
	c.Remaining, _ = money.Sub(c.Remaining, qty)
	if money.LessThan(c.Remaining, money.Zero) {
		c.Remaining = money.Zero
	}
}
