package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

func newTestService(t *testing.T, compliance *fakeCompliance) (*Service, *oms.Service, *fakeNostro, *fakePayments) {
	t.Helper()
	bus := events.NewBus()
	omCfg := config.OrderManagerConfig{MinOrderSize: "0.01", MaxOrderSize: "100000000", MaxOrdersPerUser: 100, OrderExpiryHours: 24}
	orders := oms.NewService(omCfg, fakeAccounts{}, fakeRates{}, nil, bus)

	seCfg := config.SettlementConfig{
		DefaultCycle: "T+0", EnableNetting: true, RetryAttempts: 2,
		RetryDelay: time.Millisecond, ProcessorInterval: time.Hour, CommissionRate: "0",
	}
	nostro := newFakeNostro()
	payments := &fakePayments{}
	var svc *Service
	if compliance == nil {
		svc = NewService(seCfg, orders, payments, nostro, nil, bus)
	} else {
		svc = NewService(seCfg, orders, payments, nostro, compliance, bus)
	}
	return svc, orders, nostro, payments
}

func placeOrder(t *testing.T, orders *oms.Service, side oms.Side, qty, price string) *oms.Order {
	t.Helper()
	order, err := orders.CreateOrder(context.Background(), "trader-1", oms.CreateOrderParams{
		Side: side, OrderType: oms.TypeLimit, CurrencyPair: "EUR/USD",
		Quantity: money.MustParse(qty), Price: money.MustParse(price), TimeInForce: oms.TIFGTC,
	})
	if err != nil {
		t.Fatalf("unexpected error creating order: %v", err)
	}
	return order
}

func TestCreateSettlement_BuildsTwoLegsForBuy(t *testing.T) {
	svc, orders, _, _ := newTestService(t, nil)
	order := placeOrder(t, orders, oms.SideBuy, "1000", "1.1000")

	st, err := svc.CreateSettlement(order, "trade-1", "CP1", money.MustParse("1000"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if money.Cmp(st.GrossAmount, money.MustParse("1100")) != 0 {
		t.Fatalf("expected gross 1100, got %s", st.GrossAmount)
	}
	if st.Legs[0].Type != LegReceive || st.Legs[0].Currency != "EUR" {
		t.Fatalf("expected buy's first leg to receive EUR, got %+v", st.Legs[0])
	}
	if st.Legs[1].Type != LegPay || st.Legs[1].Currency != "USD" {
		t.Fatalf("expected buy's second leg to pay USD, got %+v", st.Legs[1])
	}
	if st.Status != StatusPending {
		t.Fatalf("expected newly created settlement to be pending, got %s", st.Status)
	}
}

func TestCreateSettlement_BuildsTwoLegsForSell(t *testing.T) {
	svc, orders, _, _ := newTestService(t, nil)
	order := placeOrder(t, orders, oms.SideSell, "600", "1.1000")

	st, err := svc.CreateSettlement(order, "trade-2", "CP1", money.MustParse("600"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Legs[0].Type != LegPay || st.Legs[0].Currency != "EUR" {
		t.Fatalf("expected sell's first leg to pay EUR, got %+v", st.Legs[0])
	}
	if st.Legs[1].Type != LegReceive || st.Legs[1].Currency != "USD" {
		t.Fatalf("expected sell's second leg to receive USD, got %+v", st.Legs[1])
	}
}

// TestProcessTick_NetsAndSettlesBatch mirrors the worked netting scenario:
// a 1,000 EUR/USD buy and a 600 EUR/USD sell against the same counterparty,
// both due the same day, must net and settle together under one batch id.
func TestProcessTick_NetsAndSettlesBatch(t *testing.T) {
	svc, orders, nostro, payments := newTestService(t, nil)

	buyOrder := placeOrder(t, orders, oms.SideBuy, "1000", "1.1000")
	sellOrder := placeOrder(t, orders, oms.SideSell, "600", "1.1000")

	buySettlement, err := svc.CreateSettlement(buyOrder, "trade-1", "CP1", money.MustParse("1000"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sellSettlement, err := svc.CreateSettlement(sellOrder, "trade-2", "CP1", money.MustParse("600"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.processTick(context.Background(), time.Now().Add(time.Second))

	if buySettlement.Status != StatusSettled || sellSettlement.Status != StatusSettled {
		t.Fatalf("expected both settlements settled, got %s and %s", buySettlement.Status, sellSettlement.Status)
	}
	if buySettlement.BatchID == "" || buySettlement.BatchID != sellSettlement.BatchID {
		t.Fatalf("expected both settlements to share one batch id, got %q and %q", buySettlement.BatchID, sellSettlement.BatchID)
	}
	if money.Cmp(nostro.debits["USD"], money.MustParse("440")) != 0 {
		t.Fatalf("expected nostro USD debit of 440 for the net pay leg, got %s", nostro.debits["USD"])
	}
	if money.Cmp(nostro.credits["EUR"], money.MustParse("400")) != 0 {
		t.Fatalf("expected nostro EUR credit of 400 for the net receive leg, got %s", nostro.credits["EUR"])
	}
	if payments.sendCalls != 1 {
		t.Fatalf("expected exactly one outbound payment for the net USD pay leg, got %d", payments.sendCalls)
	}
}

// TestProcessTick_ComplianceVetoFailsSettlementWithoutRetry mirrors the
// compliance-veto scenario: CheckSettlement rejecting a settlement marks it
// failed immediately, with no retry scheduled and the originating fill
// left alone.
func TestProcessTick_ComplianceVetoFailsSettlementWithoutRetry(t *testing.T) {
	var vetoedID string
	compliance := &fakeCompliance{vetoSettlements: map[string]bool{}}
	svc, orders, _, payments := newTestService(t, compliance)

	order := placeOrder(t, orders, oms.SideBuy, "1000", "1.1000")
	st, err := svc.CreateSettlement(order, "trade-1", "CP1", money.MustParse("1000"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vetoedID = st.ID
	compliance.vetoSettlements[vetoedID] = true

	svc.processTick(context.Background(), time.Now().Add(time.Second))

	got, ok := svc.GetSettlement(vetoedID)
	if !ok {
		t.Fatalf("expected settlement to still exist")
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected vetoed settlement to be failed, got %s", got.Status)
	}
	if got.RetryCount != 0 || !got.NextRetryAt.IsZero() {
		t.Fatalf("expected no retry scheduled for a compliance veto, got retryCount=%d nextRetryAt=%s", got.RetryCount, got.NextRetryAt)
	}
	if payments.sendCalls != 0 {
		t.Fatalf("expected no payment attempt for a vetoed settlement, got %d calls", payments.sendCalls)
	}

	if _, ok := orders.GetOrder(order.ID); !ok {
		t.Fatalf("expected order to still exist untouched")
	}
}

func TestProcessTick_RetriesTransientPaymentFailureThenFails(t *testing.T) {
	svc, orders, _, payments := newTestService(t, nil)
	payments.sendFail = true

	order := placeOrder(t, orders, oms.SideBuy, "1000", "1.1000")
	st, err := svc.CreateSettlement(order, "trade-1", "CP1", money.MustParse("1000"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now().Add(time.Second)
	svc.processTick(context.Background(), now)
	if st.Status != StatusPending || st.RetryCount != 1 {
		t.Fatalf("expected first failure to schedule a retry, got status=%s retryCount=%d", st.Status, st.RetryCount)
	}

	now = st.NextRetryAt.Add(time.Millisecond)
	svc.processTick(context.Background(), now)
	if st.Status != StatusPending || st.RetryCount != 2 {
		t.Fatalf("expected second failure to schedule another retry, got status=%s retryCount=%d", st.Status, st.RetryCount)
	}

	now = st.NextRetryAt.Add(time.Millisecond)
	svc.processTick(context.Background(), now)
	if st.Status != StatusFailed {
		t.Fatalf("expected settlement to fail once retry attempts are exhausted, got %s", st.Status)
	}
}

func TestProcessTick_NostroShortfallIsFatalNoRetry(t *testing.T) {
	svc, orders, nostro, _ := newTestService(t, nil)
	nostro.debitFail = true

	order := placeOrder(t, orders, oms.SideBuy, "1000", "1.1000")
	st, err := svc.CreateSettlement(order, "trade-1", "CP1", money.MustParse("1000"), money.MustParse("1.1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.processTick(context.Background(), time.Now().Add(time.Second))

	if st.Status != StatusFailed {
		t.Fatalf("expected nostro shortfall to fail the settlement immediately, got %s", st.Status)
	}
	if st.RetryCount != 0 {
		t.Fatalf("expected no retry for a fatal nostro error, got retryCount=%d", st.RetryCount)
	}
}
