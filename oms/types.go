// Package oms implements the Order Manager: order state, validation, fund
// reservation, and the per-pair in-memory order book. It is the entry point
// of the core's data flow (client → OM.create → EE → SE → AE).
package oms

import (
	"time"

	"github.com/epic1st/fxcore/money"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the closed set of supported order types.
type OrderType string

const (
	TypeMarket      OrderType = "market"
	TypeLimit       OrderType = "limit"
	TypeStop        OrderType = "stop"
	TypeStopLimit   OrderType = "stop_limit"
	TypeTrailingStop OrderType = "trailing_stop"
)

// TimeInForce is the closed set of supported TIFs.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFDAY TimeInForce = "DAY"
)

// Status is the order lifecycle state (spec §4.1 state machine).
type Status string

const (
	StatusPending       Status = "pending"
	StatusSubmitted     Status = "submitted"
	StatusPartialFilled Status = "partial_filled"
	StatusFilled        Status = "filled"
	StatusCancelled     Status = "cancelled"
	StatusRejected      Status = "rejected"
	StatusExpired       Status = "expired"
)

// IsTerminal reports whether s is one of the terminal states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// transitions enumerates the allow-list of status changes (spec §4.1,
// design note §9 "closed sum types ... checked on every write").
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusSubmitted: true,
		StatusRejected:  true,
	},
	StatusSubmitted: {
		StatusPartialFilled: true,
		StatusFilled:        true,
		StatusCancelled:     true,
		StatusExpired:       true,
	},
	StatusPartialFilled: {
		StatusPartialFilled: true,
		StatusFilled:        true,
		StatusCancelled:     true,
		StatusExpired:       true,
	},
}

func allowedTransition(from, to Status) bool {
	return transitions[from][to]
}

// Fill is one execution report applied to an order.
type Fill struct {
	ExecutionID      string
	OrderID          string
	ProviderID       string
	Quantity         money.Amount
	Price            money.Amount
	Timestamp        time.Time
	LatencyMs        float64
	Commission       money.Amount
	PriceImprovement money.Amount
}

// Order is the core's order aggregate. Mutated only by OM itself (per §3
// "Ownership" — EE and the expiry sweep request changes through OM's
// methods, never by touching the struct directly from another package).
type Order struct {
	ID                string
	ClientOrderID     string
	UserID            string
	Side              Side
	OrderType         OrderType
	CurrencyPair      string
	Quantity          money.Amount // original request units == OriginalQuantity
	OriginalQuantity  money.Amount
	FilledQuantity    money.Amount
	RemainingQuantity money.Amount
	Price             money.Amount // for limit / stop_limit
	StopPrice         money.Amount // for stop / stop_limit / trailing_stop
	TrailingOffset    money.Amount // for trailing_stop
	TimeInForce       TimeInForce
	Status            Status
	Fills             []Fill
	AverageFillPrice  money.Amount
	ReservedAccountID string
	ReservedCurrency  string
	ReservedAmount    money.Amount
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateOrderParams is the caller-supplied subset of Order fields for
// CreateOrder (spec §4.1 "Operations").
type CreateOrderParams struct {
	ClientOrderID string
	Side          Side
	OrderType     OrderType
	CurrencyPair  string
	Quantity      money.Amount
	Price         money.Amount
	StopPrice     money.Amount
	TrailingOffset money.Amount
	TimeInForce   TimeInForce
	ExpiresAt     time.Time // zero value: derived from TIF/orderExpiryHours
}

// ModifyOrderParams carries only the fields being changed; a nil field
// means "leave unchanged" (money.Amount zero value is otherwise a valid
// quantity, so each field is a pointer).
type ModifyOrderParams struct {
	Quantity    *money.Amount
	Price       *money.Amount
	StopPrice   *money.Amount
	TimeInForce *TimeInForce
}

// ListFilters narrows ListUserOrders results.
type ListFilters struct {
	Status       Status // empty: all
	CurrencyPair string // empty: all
}

// BookEntry is a read-only snapshot row returned by GetOrderBook.
type BookEntry struct {
	OrderID   string
	Side      Side
	OrderType OrderType
	Price     money.Amount
	Quantity  money.Amount
	CreatedAt time.Time
}
