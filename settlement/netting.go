package settlement

import (
	"time"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/money"
)

// cycleOverrides holds per-pair exceptions to the configured default cycle
// (spec Open Question #4: "value date = settlement date... leave as a
// per-pair policy"). USD/CAD conventionally settles T+1 in the cash FX
// market; this is the one override the core ships with.
var cycleOverrides = map[string]string{
	"USD/CAD": "T+1",
	"CAD/USD": "T+1",
}

// cycleForPair resolves the settlement cycle for pair, honoring any
// per-pair override ahead of the configured default.
func cycleForPair(pair string, cfg config.SettlementConfig) string {
	if c, ok := cycleOverrides[pair]; ok {
		return c
	}
	return cfg.DefaultCycle
}

// cycleDays maps a T+N cycle literal to N.
func cycleDays(cycle string) int {
	switch cycle {
	case "T+0":
		return 0
	case "T+1":
		return 1
	case "T+2":
		return 2
	default:
		return 2
	}
}

// settlementDateFor adds N business days to tradeDate, skipping weekends.
func settlementDateFor(tradeDate time.Time, cycle string) time.Time {
	n := cycleDays(cycle)
	d := tradeDate
	for i := 0; i < n; i++ {
		d = d.AddDate(0, 0, 1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}

// computeNetting folds a group of settlements sharing (counterpartyId,
// settlementDate) into net per-currency obligations (spec §3 "NettingBatch"
// invariant: netAmounts[c] = Σreceive(c) - Σpay(c)).
func computeNetting(id string, group []*Settlement) *NettingBatch {
	batch := &NettingBatch{
		ID:             id,
		CounterpartyID: group[0].CounterpartyID,
		SettlementDate: group[0].SettlementDate,
		NetAmounts:     make(map[string]money.Amount),
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}

	for _, s := range group {
		batch.SettlementIDs = append(batch.SettlementIDs, s.ID)
		for _, leg := range s.Legs {
			signed := leg.Amount
			if leg.Type == LegPay {
				signed = money.Neg(leg.Amount)
			}
			current := batch.NetAmounts[leg.Currency]
			sum, err := money.Add(current, signed)
			if err != nil {
				continue
			}
			batch.NetAmounts[leg.Currency] = sum
		}
	}

	threshold := money.MustParse("0.01")
	for currency, amount := range batch.NetAmounts {
		if !money.GreaterThanAbsThreshold(amount, threshold) {
			continue
		}
		legType := LegReceive
		magnitude := amount
		if money.Sign(amount) < 0 {
			legType = LegPay
			magnitude = money.Abs(amount)
		}
		batch.Legs = append(batch.Legs, NettingLeg{Currency: currency, Amount: magnitude, Type: legType, Status: LegStatusPending})
	}

	return batch
}

// selectPaymentMethod applies spec §4.3's "Payment method selection" rule.
func selectPaymentMethod(currency string, amount money.Amount) externals.PaymentMethod {
	million := money.MustParse("1000000")
	if money.GreaterThan(amount, million) {
		return externals.MethodSWIFTWire
	}
	switch currency {
	case "USD", "EUR", "GBP":
		return externals.MethodRTGS
	default:
		return externals.MethodCorrespondentBank
	}
}

// selectPriority applies spec §4.3's priority bucket rule.
func selectPriority(amount money.Amount) externals.Priority {
	tenMillion := money.MustParse("10000000")
	million := money.MustParse("1000000")
	switch {
	case money.GreaterThan(amount, tenMillion):
		return externals.PriorityHigh
	case money.GreaterThan(amount, million):
		return externals.PriorityNormal
	default:
		return externals.PriorityLow
	}
}
