package analytics

import (
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// applyFill folds one fill into pos in place, following spec §4.4's
// "Position update" rule exactly: same-sign fills extend the position at a
// blended average price; opposite-sign fills realize P&L on the closing
// portion and either reduce or flip the remainder.
func applyFill(pos *Position, tradeID string, side oms.Side, qty, price money.Amount) error {
	signedQty := qty
	if side == oms.SideSell {
		signedQty = money.Neg(qty)
	}

	pos.Trades = append(pos.Trades, Trade{TradeID: tradeID, Side: side, Quantity: qty, Price: price, Timestamp: time.Now()})

	sameSignOrFlat := money.IsZero(pos.Quantity) || money.Sign(pos.Quantity) == money.Sign(signedQty)

	if sameSignOrFlat {
		notional, err := money.Mul(qty, price)
		if err != nil {
			return err
		}
		newCost, err := money.Add(pos.TotalCost, notional)
		if err != nil {
			return err
		}
		newQty, err := money.Add(pos.Quantity, signedQty)
		if err != nil {
			return err
		}
		pos.TotalCost = newCost
		pos.Quantity = newQty
		if !money.IsZero(newQty) {
			avg, err := money.Quo(money.Abs(newCost), money.Abs(newQty))
			if err != nil {
				return err
			}
			pos.AveragePrice = avg
		}
		return nil
	}

	prevSign := money.Sign(pos.Quantity)
	closingQty := money.Abs(signedQty)
	if money.GreaterThan(closingQty, money.Abs(pos.Quantity)) {
		closingQty = money.Abs(pos.Quantity)
	}

	diff, err := money.Sub(price, pos.AveragePrice)
	if err != nil {
		return err
	}
	delta, err := money.Mul(closingQty, diff)
	if err != nil {
		return err
	}
	if prevSign < 0 {
		delta = money.Neg(delta)
	}
	realized, err := money.Add(pos.RealizedPnL, delta)
	if err != nil {
		return err
	}
	pos.RealizedPnL = realized

	newQty, err := money.Add(pos.Quantity, signedQty)
	if err != nil {
		return err
	}

	switch {
	case money.IsZero(newQty):
		pos.Quantity = money.Zero
		pos.TotalCost = money.Zero
		pos.AveragePrice = money.Zero
	case money.Sign(newQty) == prevSign:
		notional, err := money.Mul(money.Abs(newQty), pos.AveragePrice)
		if err != nil {
			return err
		}
		pos.Quantity = newQty
		pos.TotalCost = notional
	default: // sign flipped
		notional, err := money.Mul(money.Abs(newQty), price)
		if err != nil {
			return err
		}
		pos.Quantity = newQty
		pos.AveragePrice = price
		pos.TotalCost = notional
	}

	return nil
}
