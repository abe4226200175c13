package execution

import (
	"math"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

// scoreProvider computes the composite routing score (spec §4.2 "Provider
// selection"), generalized from the teacher's abook/sor.go LP health
// formula (fillRate/slippage/latency/rejectRate weighted) into the
// spec's five-term weighted score.
func scoreProvider(cfg externals.ProviderConfig, stats externals.ProviderStats, quote externals.Quote, quantity money.Amount) float64 {
	priceScore := 1.0 / (1.0 + math.Abs(money.ToFloat64(quote.Spread)))
	reliabilityScore := cfg.Reliability * (stats.SuccessRate / 100.0)
	latencyScore := 1.0 / (1.0 + stats.AvgLatencyMs/1000.0)

	capacityScore := 1.0
	if !money.IsZero(cfg.MaxOrderSize) {
		capacityScore = money.ToFloat64(quantity) / money.ToFloat64(cfg.MaxOrderSize)
		if capacityScore > 1.0 {
			capacityScore = 1.0
		}
	}
	costScore := 1.0 / (1.0 + cfg.CostBps/100.0)

	return 0.40*priceScore + 0.25*reliabilityScore + 0.20*latencyScore + 0.10*capacityScore + 0.05*costScore
}
