package execution

import (
	"math"
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// selectAlgorithm applies spec §4.2's "Algorithm selection (default)" rule
// when the caller did not request one explicitly.
func selectAlgorithm(order *oms.Order, requested Algorithm) Algorithm {
	if requested != "" {
		return requested
	}
	million := money.MustParse("1000000")
	switch {
	case order.OrderType == oms.TypeMarket && money.GreaterThan(order.Quantity, million):
		return AlgoTWAP
	case order.OrderType == oms.TypeMarket:
		return AlgoImplementationShortfall
	case order.OrderType == oms.TypeLimit:
		return AlgoPOV
	default:
		return AlgoVWAP
	}
}

// nextSlice computes the next child order for one dispatcher tick, or nil
// when the algorithm has nothing to send this tick.
func nextSlice(c *Context, now time.Time, mkt MarketSnapshot) *Slice {
	if money.LessThanOrEqual(c.Remaining, money.Zero) {
		return nil
	}

	switch c.Algorithm {
	case AlgoTWAP:
		remain := c.timeLimit() - c.elapsed(now)
		intervals := math.Ceil(remain.Seconds() / 10.0)
		if intervals < 1 {
			intervals = 1
		}
		n, _ := money.FromFloat(intervals)
		size, err := money.Quo(c.Remaining, n)
		if err != nil {
			size = c.Remaining
		}
		return &Slice{Quantity: capAt(size, c.Remaining), Urgency: UrgencyLow}

	case AlgoVWAP:
		tenPct, _ := money.Mul(c.Remaining, money.MustParse("0.1"))
		return &Slice{Quantity: capAt(tenPct, c.Remaining), Urgency: UrgencyNormal}

	case AlgoImplementationShortfall:
		qty, _ := money.Mul(c.Remaining, money.MustParse("0.2"))
		return &Slice{Quantity: capAt(qty, c.Remaining), Urgency: UrgencyHigh}

	case AlgoPOV:
		// No historical-volume feed is wired (spec is silent on a
		// fallback here the way it is for VWAP); expectedPeriodVolume is
		// approximated as the remaining quantity itself, so this reduces
		// to participationRate·remaining capped at remaining.
		participationRate := money.MustParse("0.1")
		qty, _ := money.Mul(c.Remaining, participationRate)
		return &Slice{Quantity: capAt(qty, c.Remaining), Urgency: UrgencyNormal}

	case AlgoMarketMaking:
		qty, _ := money.Mul(c.Remaining, money.MustParse("0.05"))
		var target money.Amount
		offset, _ := money.Mul(mkt.Spread, money.MustParse("0.3"))
		if c.Side == oms.SideBuy {
			target, _ = money.Add(mkt.Bid, offset)
		} else {
			target, _ = money.Sub(mkt.Ask, offset)
		}
		return &Slice{Quantity: capAt(qty, c.Remaining), Urgency: UrgencyLow, TargetPrice: target}

	default:
		return &Slice{Quantity: c.Remaining, Urgency: UrgencyNormal}
	}
}

func capAt(qty, remaining money.Amount) money.Amount {
	if money.GreaterThan(qty, remaining) {
		return remaining
	}
	return qty
}
