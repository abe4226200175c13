package analytics

import (
	"testing"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// TestApplyFill_SameSignBlendsAveragePrice mirrors the worked scenario: two
// same-side buy fills (5,000 @ 1.0999 then 5,000 @ 1.1000) blend into a
// single +10,000 position at the volume-weighted average price.
func TestApplyFill_SameSignBlendsAveragePrice(t *testing.T) {
	pos := &Position{}
	if err := applyFill(pos, "t1", oms.SideBuy, money.MustParse("5000"), money.MustParse("1.0999")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := applyFill(pos, "t2", oms.SideBuy, money.MustParse("5000"), money.MustParse("1.1000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if money.Cmp(pos.Quantity, money.MustParse("10000")) != 0 {
		t.Fatalf("expected quantity 10000, got %s", pos.Quantity)
	}
	if money.Cmp(pos.AveragePrice, money.MustParse("1.09995")) != 0 {
		t.Fatalf("expected average price 1.09995, got %s", pos.AveragePrice)
	}
	if !money.IsZero(pos.RealizedPnL) {
		t.Fatalf("expected zero realized P&L on same-side fills, got %s", pos.RealizedPnL)
	}
}

// TestApplyFill_OppositeSignClosesPartially mirrors the worked scenario: a
// 1,000-unit sell against a +10,000 @ 1.09995 long realizes a small loss
// and reduces the position at an unchanged average price.
func TestApplyFill_OppositeSignClosesPartially(t *testing.T) {
	pos := &Position{Quantity: money.MustParse("10000"), AveragePrice: money.MustParse("1.09995"), TotalCost: money.MustParse("10999.5")}

	if err := applyFill(pos, "t3", oms.SideSell, money.MustParse("1000"), money.MustParse("1.0998")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if money.Cmp(pos.Quantity, money.MustParse("9000")) != 0 {
		t.Fatalf("expected quantity reduced to 9000, got %s", pos.Quantity)
	}
	if money.Cmp(pos.AveragePrice, money.MustParse("1.09995")) != 0 {
		t.Fatalf("expected average price unchanged at 1.09995, got %s", pos.AveragePrice)
	}
	expectedPnL := money.MustParse("-0.15")
	if money.Cmp(pos.RealizedPnL, expectedPnL) != 0 {
		t.Fatalf("expected realized P&L -0.15, got %s", pos.RealizedPnL)
	}
}

// TestApplyFill_FullRoundTripNetsZero mirrors the round-trip idempotence
// law: buy X then sell X of the same pair at the same price yields
// quantity=0 and realizedPnL=0.
func TestApplyFill_FullRoundTripNetsZero(t *testing.T) {
	pos := &Position{}
	if err := applyFill(pos, "t1", oms.SideBuy, money.MustParse("1000"), money.MustParse("1.1000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := applyFill(pos, "t2", oms.SideSell, money.MustParse("1000"), money.MustParse("1.1000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !money.IsZero(pos.Quantity) {
		t.Fatalf("expected flat position, got quantity %s", pos.Quantity)
	}
	if !money.IsZero(pos.RealizedPnL) {
		t.Fatalf("expected zero realized P&L on a round-trip at an unchanged price, got %s", pos.RealizedPnL)
	}
}

// TestApplyFill_SignFlipResetsAveragePrice covers an oversized closing
// fill that flips a long into a short: the remainder re-bases its average
// price to the fill price that caused the flip.
func TestApplyFill_SignFlipResetsAveragePrice(t *testing.T) {
	pos := &Position{Quantity: money.MustParse("1000"), AveragePrice: money.MustParse("1.1000"), TotalCost: money.MustParse("1100")}

	if err := applyFill(pos, "t2", oms.SideSell, money.MustParse("1500"), money.MustParse("1.1010")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if money.Cmp(pos.Quantity, money.MustParse("-500")) != 0 {
		t.Fatalf("expected quantity -500 after the flip, got %s", pos.Quantity)
	}
	if money.Cmp(pos.AveragePrice, money.MustParse("1.1010")) != 0 {
		t.Fatalf("expected average price to re-base to the flipping fill's price, got %s", pos.AveragePrice)
	}
	expectedPnL := money.MustParse("1.0") // 1000 * (1.1010 - 1.1000)
	if money.Cmp(pos.RealizedPnL, expectedPnL) != 0 {
		t.Fatalf("expected realized P&L 1.0 on the closed 1000 units, got %s", pos.RealizedPnL)
	}
}
