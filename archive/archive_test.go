package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
	"github.com/epic1st/fxcore/settlement"
)

// TestArchiveOrder_RoundTrips requires a live Postgres instance and is
// skipped unless ARCHIVE_TEST_DSN opts in. (The ratecache tests need no
// broker: they dial an address nothing listens on and exercise the
// upstream fallthrough.)
func TestArchiveOrder_RoundTrips(t *testing.T) {
	if os.Getenv("ARCHIVE_TEST_DSN") == "" {
		t.Skip("set ARCHIVE_TEST_DSN to run archive integration tests against a live Postgres instance")
	}

	cfg := config.PostgresConfig{Host: "localhost", Port: "5432", Name: "fxcore_test", User: "postgres", Password: "postgres", SSLMode: "disable"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	order := &oms.Order{
		ID: "test-order-1", UserID: "u1", CurrencyPair: "EUR/USD", Side: oms.SideBuy, OrderType: oms.TypeMarket,
		Status: oms.StatusFilled, OriginalQuantity: money.MustParse("1000"), FilledQuantity: money.MustParse("1000"),
		CreatedAt: time.Now(),
	}
	if err := store.ArchiveOrder(ctx, order); err != nil {
		t.Fatalf("archive order: %v", err)
	}

	st := &settlement.Settlement{
		ID: "test-settlement-1", TradeID: "exec-1", OrderID: order.ID, UserID: "u1", CounterpartyID: "cp1",
		CurrencyPair: "EUR/USD", Status: settlement.StatusSettled, NetAmount: money.MustParse("1100"),
		SettlementDate: time.Now(),
	}
	if err := store.ArchiveSettlement(ctx, st); err != nil {
		t.Fatalf("archive settlement: %v", err)
	}

	count, err := store.CountArchivedOrders(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least one archived order, got %d", count)
	}
}
