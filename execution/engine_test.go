package execution

import (
	"context"
	"testing"
	"time"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

func newTestEngine(t *testing.T, providers []externals.LiquidityProvider, cfg config.ExecutionConfig) (*Engine, *oms.Service) {
	t.Helper()
	bus := events.NewBus()
	omCfg := config.OrderManagerConfig{MinOrderSize: "0.01", MaxOrderSize: "100000000", MaxOrdersPerUser: 100, OrderExpiryHours: 24}
	svc := oms.NewService(omCfg, fakeUnlimitedAccounts{}, &fakeRateProvider{bid: money.MustParse("1.0998"), ask: money.MustParse("1.1000")}, nil, bus)
	eng := NewEngine(cfg, svc, providers, &fakeRateProvider{bid: money.MustParse("1.0998"), ask: money.MustParse("1.1000")}, bus)
	return eng, svc
}

func TestEngine_ExecuteFillsOrderViaBestProvider(t *testing.T) {
	good := &fakeProvider{
		id:    "best-lp",
		cfg:   externals.ProviderConfig{MaxOrderSize: money.MustParse("1000000"), Reliability: 1, CostBps: 0},
		stats: externals.ProviderStats{SuccessRate: 100, AvgLatencyMs: 5},
		price: money.MustParse("1.1000"),
	}
	worse := &fakeProvider{
		id:    "worse-lp",
		cfg:   externals.ProviderConfig{MaxOrderSize: money.MustParse("1000000"), Reliability: 0.3, CostBps: 20},
		stats: externals.ProviderStats{SuccessRate: 40, AvgLatencyMs: 500},
		price: money.MustParse("1.1000"),
	}

	cfg := config.ExecutionConfig{MaxSlippage: 0.01, EnableSmartRouting: true, MaxPartialFills: 3}
	eng, svc := newTestEngine(t, []externals.LiquidityProvider{worse, good}, cfg)

	order, err := svc.CreateOrder(context.Background(), "u1", oms.CreateOrderParams{
		Side: oms.SideBuy, OrderType: oms.TypeLimit, CurrencyPair: "EUR/USD",
		Quantity: money.MustParse("10000"), Price: money.MustParse("1.1000"), TimeInForce: oms.TIFGTC,
	})
	if err != nil {
		t.Fatalf("unexpected error creating order: %v", err)
	}

	execID, err := eng.Execute(context.Background(), order, Options{Algorithm: AlgoVWAP})
	if err != nil {
		t.Fatalf("unexpected error from Execute: %v", err)
	}

	eng.tick(context.Background(), time.Now())

	if good.execCalls != 1 {
		t.Fatalf("expected the higher-scoring provider to receive the execution, got %d calls", good.execCalls)
	}
	if worse.execCalls != 0 {
		t.Fatalf("expected the lower-scoring provider to be skipped, got %d calls", worse.execCalls)
	}

	status, filled, _, ok := eng.Inspect(execID)
	if !ok {
		t.Fatalf("expected context to exist")
	}
	if status != ContextRunning {
		t.Fatalf("expected context still running after one slice, got %s", status)
	}
	if money.Cmp(filled, money.MustParse("1000")) != 0 {
		t.Fatalf("expected 1000 filled (VWAP 10%% slice), got %s", filled)
	}

	got, _ := svc.GetOrder(order.ID)
	if got.Status != oms.StatusPartialFilled {
		t.Fatalf("expected order partial_filled, got %s", got.Status)
	}
}

func TestEngine_SlippageRejectionEventuallyFailsExecution(t *testing.T) {
	bad := &fakeProvider{
		id:    "bad-lp",
		cfg:   externals.ProviderConfig{MaxOrderSize: money.MustParse("1000000"), Reliability: 1, CostBps: 0},
		stats: externals.ProviderStats{SuccessRate: 100, AvgLatencyMs: 5},
		price: money.MustParse("2.0000"), // wildly off target, always rejected on slippage
	}

	cfg := config.ExecutionConfig{MaxSlippage: 0.001, EnableSmartRouting: true, MaxPartialFills: 2}
	eng, svc := newTestEngine(t, []externals.LiquidityProvider{bad}, cfg)

	order, err := svc.CreateOrder(context.Background(), "u1", oms.CreateOrderParams{
		Side: oms.SideBuy, OrderType: oms.TypeLimit, CurrencyPair: "EUR/USD",
		Quantity: money.MustParse("10000"), Price: money.MustParse("1.1000"), TimeInForce: oms.TIFGTC,
	})
	if err != nil {
		t.Fatalf("unexpected error creating order: %v", err)
	}

	execID, err := eng.Execute(context.Background(), order, Options{Algorithm: AlgoVWAP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 4; i++ {
		eng.tick(context.Background(), time.Now())
	}

	status, _, _, ok := eng.Inspect(execID)
	if !ok {
		t.Fatalf("expected context to exist")
	}
	if status != ContextError {
		t.Fatalf("expected context to fail after exceeding maxPartialFills, got %s", status)
	}
	if bad.execCalls != 0 {
		t.Fatalf("expected the provider never to execute a rejected-slippage quote, got %d calls", bad.execCalls)
	}
}

func TestEngine_TimeoutMarksContextTimedOut(t *testing.T) {
	p := &fakeProvider{
		id:    "lp1",
		cfg:   externals.ProviderConfig{MaxOrderSize: money.MustParse("1000000"), Reliability: 1, CostBps: 0},
		stats: externals.ProviderStats{SuccessRate: 100, AvgLatencyMs: 5},
		price: money.MustParse("1.1000"),
	}
	cfg := config.ExecutionConfig{MaxSlippage: 0.01, EnableSmartRouting: true, MaxPartialFills: 3}
	eng, svc := newTestEngine(t, []externals.LiquidityProvider{p}, cfg)

	order, _ := svc.CreateOrder(context.Background(), "u1", oms.CreateOrderParams{
		Side: oms.SideBuy, OrderType: oms.TypeLimit, CurrencyPair: "EUR/USD",
		Quantity: money.MustParse("10000"), Price: money.MustParse("1.1000"), TimeInForce: oms.TIFGTC,
	})

	execID, _ := eng.Execute(context.Background(), order, Options{Algorithm: AlgoVWAP, TimeLimit: time.Millisecond})

	eng.tick(context.Background(), time.Now().Add(time.Second))

	status, _, _, ok := eng.Inspect(execID)
	if !ok {
		t.Fatalf("expected context to exist")
	}
	if status != ContextTimeout {
		t.Fatalf("expected timeout status, got %s", status)
	}
}
