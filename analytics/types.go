// Package analytics implements the Analytics Engine: it folds every
// recorded fill into a per-user position, revalues open positions against
// live rates on a periodic tick, and produces performance/risk metrics and
// a daily report.
package analytics

import (
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Trade is one fill folded into a position's history.
type Trade struct {
	TradeID   string
	Side      oms.Side
	Quantity  money.Amount
	Price     money.Amount
	Timestamp time.Time
}

// Position is created lazily on a user's first fill in a pair and
// remains until quantity returns to zero (spec §3 "Position").
type Position struct {
	UserID       string
	CurrencyPair string
	Quantity     money.Amount // signed: positive long, negative short
	AveragePrice money.Amount
	TotalCost    money.Amount // magnitude, |totalCost|/|quantity| = averagePrice
	RealizedPnL  money.Amount
	Trades       []Trade

	// UnrealizedPnL and Stale are the Analytics Engine's own real-time
	// cache of the last P&L tick's result for this position — not part
	// of the canonical fill-folding state above, just the most recent
	// revaluation (spec §4.4 "Failure semantics": a stale rate must
	// carry the prior numeric value forward, never silently zero it).
	UnrealizedPnL money.Amount
	Stale         bool
	LastPricedAt  time.Time
}

// userLedger accumulates what a closed position leaves behind: spec §3's
// per-user realizedPnL is cumulative across every position a user has ever
// closed, not just the ones still open, so this is folded in before a flat
// position is dropped (spec §3 "Position: ... remains until quantity==0,
// then may be removed").
type userLedger struct {
	RealizedPnL money.Amount
	ClosedPnLs  []money.Amount // one entry per closed position, for win/loss counting
	Trades      []Trade
}

// CurrencyExposure is one currency's net notional, in both its own units
// and the configured base currency. Base is nil when no conversion rate
// was available (spec §4.4 "Rate conversion gaps set the exposure entry's
// baseCurrencyAmount to null").
type CurrencyExposure struct {
	Local money.Amount
	Base  *money.Amount
}

// PnLSnapshot is AE's per-user P&L rollup, refreshed on every tick (spec
// §3 "PnLSnapshot").
type PnLSnapshot struct {
	UserID           string
	RealizedPnL      money.Amount
	UnrealizedPnL    money.Amount
	TotalPnL         money.Amount
	CurrencyExposure map[string]CurrencyExposure
	CalculatedAt     time.Time
	Partial          bool // true when any position's rate was stale this tick
}

// PerformanceMetrics are per-user trading performance figures (spec §4.4
// "Performance & risk metrics").
type PerformanceMetrics struct {
	UserID       string
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64 // percent
	ProfitFactor float64 // Σwins / |Σlosses|; +Inf when no losses and wins>0
}

// RiskMetrics are per-user portfolio concentration/leverage figures.
// Sharpe, drawdown, and VaR are left as documented stubs: all three need a
// return-series history this core does not retain beyond the session.
type RiskMetrics struct {
	UserID        string
	Concentration float64 // Herfindahl index over |qty·avgPx| per pair
	Leverage      float64 // Σ notional / equity

	// TODO: populate once a per-user equity curve is retained across
	// ticks; both need a return series this core does not keep today.
	Sharpe       *float64
	MaxDrawdown  *float64
	VaR95        *float64
	VaR99        *float64
}

// UserDailySummary is one user's slice of the daily report.
type UserDailySummary struct {
	UserID        string
	Volume        money.Amount
	TradeCount    int
	RealizedPnL   money.Amount
	UnrealizedPnL money.Amount
	TopTrades     []Trade
}

// DailyReport is the end-of-day rollup (spec §4.4 "Daily report").
type DailyReport struct {
	Date         time.Time
	Users        []UserDailySummary
	AlertCount   int
	MarketVolume money.Amount
}
