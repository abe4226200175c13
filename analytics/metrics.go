package analytics

import (
	"math"

	"github.com/epic1st/fxcore/money"
)

// PerformanceMetrics computes win rate and profit factor for userID from
// the realized P&L of every position, open or already closed, counting
// each one's win/loss independently (spec §4.4 "Performance & risk
// metrics").
func (s *Service) PerformanceMetrics(userID string) PerformanceMetrics {
	positions := s.ListUserPositions(userID)
	_, closedPnLs, _ := s.ledgerSnapshot(userID)

	var wins, losses int
	var winSum, lossSum float64

	tally := func(pnl float64) {
		switch {
		case pnl > 0:
			wins++
			winSum += pnl
		case pnl < 0:
			losses++
			lossSum += -pnl
		}
	}

	for _, pos := range positions {
		tally(money.ToFloat64(pos.RealizedPnL))
	}
	for _, pnl := range closedPnLs {
		tally(money.ToFloat64(pnl))
	}

	total := wins + losses
	winRate := 0.0
	if total > 0 {
		winRate = float64(wins) / float64(total) * 100
	}

	profitFactor := math.Inf(1)
	if lossSum > 0 {
		profitFactor = winSum / lossSum
	} else if winSum == 0 {
		profitFactor = 0
	}

	return PerformanceMetrics{
		UserID: userID, TotalTrades: total, Wins: wins, Losses: losses,
		WinRate: winRate, ProfitFactor: profitFactor,
	}
}

// RiskMetrics computes Herfindahl concentration and leverage for userID.
// Sharpe/drawdown/VaR are left nil: all three need a per-user return
// series this core does not retain across ticks (spec's own explicit
// allowance to stub them).
func (s *Service) RiskMetrics(userID string, equity money.Amount) RiskMetrics {
	positions := s.ListUserPositions(userID)

	notionals := make([]float64, 0, len(positions))
	var totalNotional float64
	for _, pos := range positions {
		n := math.Abs(money.ToFloat64(pos.Quantity) * money.ToFloat64(pos.AveragePrice))
		notionals = append(notionals, n)
		totalNotional += n
	}

	concentration := 0.0
	if totalNotional > 0 {
		for _, n := range notionals {
			share := n / totalNotional
			concentration += share * share
		}
	}

	leverage := 0.0
	if eq := money.ToFloat64(equity); eq > 0 {
		leverage = totalNotional / eq
	}

	return RiskMetrics{UserID: userID, Concentration: concentration, Leverage: leverage}
}
