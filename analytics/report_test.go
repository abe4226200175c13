package analytics

import (
	"testing"
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// TestGenerateDailyReport_IncludesClosedPositionVolumeAndTrades guards
// against an intraday round-trip reporting zero volume/trades/realized P&L
// once its Position has been removed on going flat.
func TestGenerateDailyReport_IncludesClosedPositionVolumeAndTrades(t *testing.T) {
	svc, _ := newTestService(t, &fakeRates{rate: freshRate()})

	if err := svc.RecordTrade("u1", "EUR/USD", "trade-1", oms.SideBuy, money.MustParse("1000"), money.MustParse("1.1000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RecordTrade("u1", "EUR/USD", "trade-2", oms.SideSell, money.MustParse("1000"), money.MustParse("1.1010")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := svc.GenerateDailyReport(time.Now())
	if len(report.Users) != 1 {
		t.Fatalf("expected one user in the report, got %d", len(report.Users))
	}
	summary := report.Users[0]
	if summary.TradeCount != 2 {
		t.Fatalf("expected 2 trades rolled up from the closed position, got %d", summary.TradeCount)
	}
	if money.IsZero(summary.Volume) {
		t.Fatalf("expected nonzero volume rolled up from the closed position's trades")
	}
	want := money.MustParse("1.0")
	if money.Cmp(summary.RealizedPnL, want) != 0 {
		t.Fatalf("expected realized P&L 1.0 from the closed position, got %s", summary.RealizedPnL)
	}
}
