// Package settlement implements the Settlement Engine: it turns every
// completed fill into a two-legged Settlement, nets same-day obligations
// per counterparty into batches, and drives each leg to paid through the
// external Payment System and Nostro accounts.
package settlement

import (
	"time"

	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Status is the settlement lifecycle (spec §3 "Settlement").
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSettled    Status = "settled"
	StatusFailed     Status = "failed"
)

// LegType distinguishes the two legs of a settlement.
type LegType string

const (
	LegPay     LegType = "pay"
	LegReceive LegType = "receive"
)

// LegStatus tracks one leg's own progress independent of the parent.
type LegStatus string

const (
	LegStatusPending   LegStatus = "pending"
	LegStatusCompleted LegStatus = "completed"
	LegStatusFailed    LegStatus = "failed"
)

// Leg is one side of a settlement's currency movement.
type Leg struct {
	Type     LegType
	Currency string
	Amount   money.Amount // always the positive magnitude moved
	Status   LegStatus
}

// Settlement is created once per completed fill (spec §4.3 "Settlement
// creation"). Two legs always move opposite currencies.
type Settlement struct {
	ID             string
	TradeID        string // the Fill's executionId
	OrderID        string
	UserID         string
	CounterpartyID string // the liquidity provider that filled the trade
	CurrencyPair   string
	Side           oms.Side
	Quantity       money.Amount
	Price          money.Amount
	GrossAmount    money.Amount
	NetAmount      money.Amount // gross - commission
	Commission     money.Amount
	SettlementCycle string
	SettlementDate time.Time
	ValueDate      time.Time
	Status         Status
	Legs           [2]Leg
	BatchID        string
	RetryCount     int
	NextRetryAt    time.Time
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NettingBatch groups settlements sharing (counterpartyId, settlementDate)
// into net currency obligations (spec §3 "NettingBatch").
type NettingBatch struct {
	ID             string
	CounterpartyID string
	SettlementDate time.Time
	SettlementIDs  []string
	NetAmounts     map[string]money.Amount // currency -> signed net (receive +, pay -)
	Legs           []NettingLeg
	Status         Status
	CreatedAt      time.Time
}

// NettingLeg is one non-zero currency obligation the batch must settle.
type NettingLeg struct {
	Currency string
	Amount   money.Amount // positive magnitude
	Type     LegType
	Status   LegStatus
}
