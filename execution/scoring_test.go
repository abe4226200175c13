package execution

import (
	"math"
	"testing"

	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

func TestScoreProvider_WeightedComposite(t *testing.T) {
	cfg := externals.ProviderConfig{
		MaxOrderSize: money.MustParse("1000000"),
		Reliability:  0.9,
		CostBps:      2,
	}
	stats := externals.ProviderStats{SuccessRate: 98, AvgLatencyMs: 50}
	quote := externals.Quote{Spread: money.MustParse("0.0002")}
	quantity := money.MustParse("500000")

	got := scoreProvider(cfg, stats, quote, quantity)

	priceScore := 1.0 / (1.0 + math.Abs(0.0002))
	reliabilityScore := 0.9 * (98.0 / 100.0)
	latencyScore := 1.0 / (1.0 + 50.0/1000.0)
	capacityScore := 500000.0 / 1000000.0
	costScore := 1.0 / (1.0 + 2.0/100.0)
	want := 0.40*priceScore + 0.25*reliabilityScore + 0.20*latencyScore + 0.10*capacityScore + 0.05*costScore

	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %.10f, got %.10f", want, got)
	}
}

func TestScoreProvider_CapacityScoreCapsAtOne(t *testing.T) {
	cfg := externals.ProviderConfig{MaxOrderSize: money.MustParse("1000"), Reliability: 1, CostBps: 0}
	stats := externals.ProviderStats{SuccessRate: 100, AvgLatencyMs: 0}
	quote := externals.Quote{Spread: money.Zero}

	got := scoreProvider(cfg, stats, quote, money.MustParse("50000"))
	// capacityScore should clamp to 1 rather than exceed it; full weight on
	// every other term is at its formula max, so the result is bounded by
	// the same score a quantity==MaxOrderSize request would get.
	atCap := scoreProvider(cfg, stats, quote, money.MustParse("1000"))
	if math.Abs(got-atCap) > 1e-9 {
		t.Fatalf("expected capacity clamp to equal at-capacity score %.10f, got %.10f", atCap, got)
	}
}

func TestScoreProvider_ZeroMaxOrderSizeTreatsCapacityAsUnconstrained(t *testing.T) {
	cfg := externals.ProviderConfig{MaxOrderSize: money.Zero, Reliability: 1, CostBps: 0}
	stats := externals.ProviderStats{SuccessRate: 100, AvgLatencyMs: 0}
	quote := externals.Quote{Spread: money.Zero}

	got := scoreProvider(cfg, stats, quote, money.MustParse("999999999"))
	want := 0.40*1.0 + 0.25*1.0 + 0.20*1.0 + 0.10*1.0 + 0.05*1.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.10f, got %.10f", want, got)
	}
}
