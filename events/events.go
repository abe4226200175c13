// Package events implements the typed publish/subscribe bus that replaces
// the teacher's ad hoc event-emitter pattern (design note, spec §9): every
// event kind carries a concrete payload struct instead of a dynamic map,
// and subscribers register per kind rather than on a shared global bus.
package events

import (
	"sync"
	"time"
)

// Kind identifies an event variant. Closed set, enumerated below — no
// dynamically registered event names.
type Kind string

const (
	KindOrderCreated         Kind = "orderCreated"
	KindOrderStatusChanged   Kind = "orderStatusChanged"
	KindOrderModified        Kind = "orderModified"
	KindOrderCancelled       Kind = "orderCancelled"
	KindSliceExecuted        Kind = "sliceExecuted"
	KindExecutionStarted     Kind = "executionStarted"
	KindExecutionCompleted   Kind = "executionCompleted"
	KindExecutionTimeout     Kind = "executionTimeout"
	KindExecutionError       Kind = "executionError"
	KindSettlementCreated    Kind = "settlementCreated"
	KindSettlementProcessed  Kind = "settlementProcessed"
	KindNettingGroupProc     Kind = "nettingGroupProcessed"
	KindSettlementFailed     Kind = "settlementFailed"
	KindPnLCalculated        Kind = "pnlCalculated"
	KindTradeAnalyzed        Kind = "tradeAnalyzed"
	KindDailyReportGenerated Kind = "dailyReportGenerated"
	KindAlert                Kind = "alert"
)

// Event is the envelope delivered to subscribers. Payload is one of the
// concrete *Payload structs below; Kind tells the subscriber which one.
type Event struct {
	Kind          Kind
	CorrelationID string // orderId / executionId / settlementId
	Timestamp     time.Time
	Payload       any
}

// OrderCreatedPayload is published when OM accepts a new order.
type OrderCreatedPayload struct {
	OrderID  string
	UserID   string
	Pair     string
	Side     string
	Quantity string // decimal text, avoids importing money into every subscriber
}

// OrderStatusChangedPayload is published on every OM state transition.
type OrderStatusChangedPayload struct {
	OrderID   string
	From      string
	To        string
	Reason    string
	UpdatedAt time.Time
}

// OrderModifiedPayload is published after a successful ModifyOrder.
type OrderModifiedPayload struct {
	OrderID string
	Fields  []string
}

// OrderCancelledPayload is published after a successful CancelOrder.
type OrderCancelledPayload struct {
	OrderID string
	Reason  string
}

// SliceExecutedPayload is published for every successful provider fill.
type SliceExecutedPayload struct {
	OrderID     string
	ExecutionID string
	ProviderID  string
	Quantity    string
	Price       string
	Commission  string
}

// ExecutionStartedPayload is published when EE begins working an order.
type ExecutionStartedPayload struct {
	OrderID     string
	ExecutionID string
	Algorithm   string
}

// ExecutionCompletedPayload is published when an execution context drains.
type ExecutionCompletedPayload struct {
	OrderID        string
	ExecutionID    string
	AveragePrice   string
	SlippageBps    float64
	FilledQuantity string
}

// ExecutionTimeoutPayload is published when a context's time budget elapses.
type ExecutionTimeoutPayload struct {
	OrderID         string
	ExecutionID     string
	FilledQuantity  string
	RemainingQty    string
}

// ExecutionErrorPayload is published when an execution fails terminally.
type ExecutionErrorPayload struct {
	OrderID     string
	ExecutionID string
	Reason      string
}

// SettlementCreatedPayload is published when SE books a new settlement.
type SettlementCreatedPayload struct {
	SettlementID  string
	TradeID       string
	CounterpartyID string
	SettlementDate time.Time
}

// SettlementProcessedPayload is published when a settlement reaches settled.
type SettlementProcessedPayload struct {
	SettlementID string
	BatchID      string
}

// NettingGroupProcessedPayload is published once per (counterparty, date)
// batch after leg processing completes (wholly or partially).
type NettingGroupProcessedPayload struct {
	BatchID        string
	CounterpartyID string
	SettledCount   int
	FailedCount    int
}

// SettlementFailedPayload is published on fatal or retry-exhausted legs.
type SettlementFailedPayload struct {
	SettlementID string
	Reason       string
	Retryable    bool
}

// PnLCalculatedPayload is published on each AE revaluation tick.
type PnLCalculatedPayload struct {
	UserID        string
	RealizedPnL   string
	UnrealizedPnL string
	TotalPnL      string
	Partial       bool
}

// TradeAnalyzedPayload is published after AE folds a fill into a position.
type TradeAnalyzedPayload struct {
	UserID string
	Pair   string
	Qty    string
}

// DailyReportGeneratedPayload is published once at end-of-day rollup.
type DailyReportGeneratedPayload struct {
	Date       time.Time
	UserCount  int
	AlertCount int
}

// AlertPayload carries an operator-facing alert (risk threshold breach,
// nostro shortfall, unexpected internal error).
type AlertPayload struct {
	Component string
	Message   string
	Severity  string
}

// Handler receives published events. Handlers must not block for long —
// Publish calls every handler synchronously on the publishing goroutine.
// Subscribers registered through AsyncHandler get a bounded channel
// instead, dropping (and counting) on overflow rather than stalling
// publishers, matching the teacher's lpmanager quote-channel backpressure
// policy (lpmanager/manager.go's select/default drop).
type Handler func(Event)

// Bus is the in-process typed pub/sub hub. Delivery is at-least-once for
// the lifetime of the process; it does not persist events across restarts.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	dropped  map[Kind]int64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
		dropped:  make(map[Kind]int64),
	}
}

// Subscribe registers fn to be called for every event of kind.
func (b *Bus) Subscribe(kind Kind, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], fn)
}

// Publish delivers ev to every subscriber of ev.Kind, synchronously, on the
// calling goroutine. Subscribers that need async behavior should hand off
// to their own worker; the bus makes no concurrency guarantee beyond
// "delivered in subscription order".
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	hs := b.handlers[ev.Kind]
	b.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// DroppedCount returns how many events of kind were dropped due to a full
// subscriber buffer (reserved for Async subscribers; see AsyncHandler).
func (b *Bus) DroppedCount(kind Kind) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[kind]
}

// AsyncHandler wraps a channel-backed handler that never blocks Publish:
// on a full channel the event is dropped and counted rather than stalling
// the publisher, matching lpmanager.Manager.aggregateQuotes's policy.
func AsyncHandler(kind Kind, b *Bus, buf int) <-chan Event {
	ch := make(chan Event, buf)
	b.Subscribe(kind, func(ev Event) {
		select {
		case ch <- ev:
		default:
			b.mu.Lock()
			b.dropped[kind]++
			b.mu.Unlock()
		}
	})
	return ch
}
