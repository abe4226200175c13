package execution

import (
	"testing"
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

func TestSelectAlgorithm_DefaultRules(t *testing.T) {
	cases := []struct {
		name      string
		orderType oms.OrderType
		quantity  string
		want      Algorithm
	}{
		{"large market order", oms.TypeMarket, "2000000", AlgoTWAP},
		{"small market order", oms.TypeMarket, "1000", AlgoImplementationShortfall},
		{"limit order", oms.TypeLimit, "1000", AlgoPOV},
		{"stop order", oms.TypeStop, "1000", AlgoVWAP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &oms.Order{OrderType: tc.orderType, Quantity: money.MustParse(tc.quantity)}
			got := selectAlgorithm(order, "")
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSelectAlgorithm_RequestedOverridesDefault(t *testing.T) {
	order := &oms.Order{OrderType: oms.TypeMarket, Quantity: money.MustParse("2000000")}
	if got := selectAlgorithm(order, AlgoMarketMaking); got != AlgoMarketMaking {
		t.Fatalf("expected explicit override to win, got %s", got)
	}
}

func TestNextSlice_VWAPTakesTenPercentOfRemaining(t *testing.T) {
	c := &Context{Algorithm: AlgoVWAP, Remaining: money.MustParse("10000"), StartTime: time.Now()}
	slice := nextSlice(c, time.Now(), MarketSnapshot{})
	if money.Cmp(slice.Quantity, money.MustParse("1000")) != 0 {
		t.Fatalf("expected 1000, got %s", slice.Quantity)
	}
}

func TestNextSlice_ImplementationShortfallTakesTwentyPercent(t *testing.T) {
	c := &Context{Algorithm: AlgoImplementationShortfall, Remaining: money.MustParse("10000"), StartTime: time.Now()}
	slice := nextSlice(c, time.Now(), MarketSnapshot{})
	if money.Cmp(slice.Quantity, money.MustParse("2000")) != 0 {
		t.Fatalf("expected 2000, got %s", slice.Quantity)
	}
	if slice.Urgency != UrgencyHigh {
		t.Fatalf("expected high urgency, got %s", slice.Urgency)
	}
}

func TestNextSlice_POVCapsAtRemaining(t *testing.T) {
	c := &Context{Algorithm: AlgoPOV, Remaining: money.MustParse("5"), StartTime: time.Now()}
	slice := nextSlice(c, time.Now(), MarketSnapshot{})
	if money.GreaterThan(slice.Quantity, money.MustParse("5")) {
		t.Fatalf("slice must never exceed remaining, got %s", slice.Quantity)
	}
}

func TestNextSlice_MarketMakingTargetsOffsetFromSpread(t *testing.T) {
	c := &Context{Algorithm: AlgoMarketMaking, Side: oms.SideBuy, Remaining: money.MustParse("10000"), StartTime: time.Now()}
	mkt := MarketSnapshot{Bid: money.MustParse("1.1000"), Ask: money.MustParse("1.1010"), Spread: money.MustParse("0.0010")}
	slice := nextSlice(c, time.Now(), mkt)
	want := money.MustParse("1.1003") // bid + 0.3*spread
	if money.Cmp(slice.TargetPrice, want) != 0 {
		t.Fatalf("expected target price %s, got %s", want, slice.TargetPrice)
	}
}

func TestNextSlice_ReturnsNilWhenNothingRemaining(t *testing.T) {
	c := &Context{Algorithm: AlgoVWAP, Remaining: money.Zero, StartTime: time.Now()}
	if slice := nextSlice(c, time.Now(), MarketSnapshot{}); slice != nil {
		t.Fatalf("expected nil slice, got %+v", slice)
	}
}
