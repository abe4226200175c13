package oms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/coreerr"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
)

// Service is the Order Manager. It owns every Order and the per-pair
// order book (spec §3 "Ownership"); every other component references an
// order only by id and mutates it exclusively through this type's
// exported methods.
type Service struct {
	cfg         config.OrderManagerConfig
	accounts    externals.AccountManager
	rates       externals.RateProvider
	compliance  externals.ComplianceChecker // nil: always-approved
	bus         *events.Bus

	mu         sync.RWMutex
	orders     map[string]*Order
	userOrders map[string]map[string]bool // userID -> set of orderIDs

	booksMu sync.RWMutex
	books   map[string]*OrderBookSide // pair -> book

	orderLocksMu sync.Mutex
	orderLocks   map[string]*sync.Mutex
}

// NewService constructs an Order Manager. compliance may be nil.
func NewService(cfg config.OrderManagerConfig, accounts externals.AccountManager, rates externals.RateProvider, compliance externals.ComplianceChecker, bus *events.Bus) *Service {
	return &Service{
		cfg:        cfg,
		accounts:   accounts,
		rates:      rates,
		compliance: compliance,
		bus:        bus,
		orders:     make(map[string]*Order),
		userOrders: make(map[string]map[string]bool),
		books:      make(map[string]*OrderBookSide),
		orderLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(orderID string) *sync.Mutex {
	s.orderLocksMu.Lock()
	defer s.orderLocksMu.Unlock()
	l, ok := s.orderLocks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.orderLocks[orderID] = l
	}
	return l
}

func (s *Service) bookFor(pair string) *OrderBookSide {
	s.booksMu.RLock()
	b, ok := s.books[pair]
	s.booksMu.RUnlock()
	if ok {
		return b
	}
	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	if b, ok = s.books[pair]; ok {
		return b
	}
	b = newOrderBookSide(pair)
	s.books[pair] = b
	return b
}

func (s *Service) openOrderCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for id := range s.userOrders[userID] {
		if o, ok := s.orders[id]; ok && !o.Status.IsTerminal() {
			count++
		}
	}
	return count
}

// CreateOrder validates params, assesses compliance, reserves collateral
// against the Account Manager, and — on success — inserts the order into
// the book (spec §4.1 "Operations").
func (s *Service) CreateOrder(ctx context.Context, userID string, params CreateOrderParams) (*Order, error) {
	cid := uuid.NewString()

	if err := validateCreate(cid, s.cfg, params, s.openOrderCount(userID)); err != nil {
		return nil, err
	}

	if s.compliance != nil {
		risk := externals.OrderRiskParams{
			UserID:   userID,
			Pair:     params.CurrencyPair,
			Side:     externals.Side(params.Side),
			Quantity: params.Quantity,
			Price:    params.Price,
		}
		assessment, err := s.compliance.AssessOrderRisk(ctx, risk)
		if err != nil {
			return nil, coreerr.Fatal(cid, err, "compliance risk assessment failed")
		}
		if !assessment.Approved {
			return s.rejectNew(cid, userID, params, assessment.Reason)
		}
		compliance, err := s.compliance.CheckOrderCompliance(ctx, risk)
		if err != nil {
			return nil, coreerr.Fatal(cid, err, "compliance check failed")
		}
		if !compliance.Approved {
			return s.rejectNew(cid, userID, params, compliance.Reason)
		}
	}

	now := time.Now()
	order := &Order{
		ID:                uuid.NewString(),
		ClientOrderID:     params.ClientOrderID,
		UserID:            userID,
		Side:              params.Side,
		OrderType:         params.OrderType,
		CurrencyPair:      params.CurrencyPair,
		Quantity:          params.Quantity,
		OriginalQuantity:  params.Quantity,
		RemainingQuantity: params.Quantity,
		Price:             params.Price,
		StopPrice:         params.StopPrice,
		TrailingOffset:    params.TrailingOffset,
		TimeInForce:       params.TimeInForce,
		Status:            StatusPending,
		ExpiresAt:         computeExpiry(params, now, s.cfg.OrderExpiryHours),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	accountID, currency, amount, err := s.reservationPlan(ctx, cid, order)
	if err != nil {
		return s.rejectOrder(order, err.Error())
	}

	res, err := s.accounts.Reserve(ctx, accountID, currency, amount, order.ID)
	if err != nil {
		metrics.RecordReservationFailure("rpc_error")
		return s.rejectOrder(order, err.Error())
	}
	if !res.Success {
		metrics.RecordReservationFailure(string(res.Failure))
		return s.rejectOrderWithErr(order, fmt.Sprintf("reservation refused: %s", res.Failure),
			coreerr.InsufficientFunds(cid, "reservation refused: %s", res.Failure))
	}

	order.ReservedAccountID = accountID
	order.ReservedCurrency = currency
	order.ReservedAmount = amount
	order.Status = StatusSubmitted
	order.UpdatedAt = time.Now()

	s.indexOrder(order)
	s.bookFor(order.CurrencyPair).Insert(order)
	s.publishCreated(order)
	metrics.RecordOrderTerminal(string(order.OrderType), "")
	logging.Info("order submitted",
		logging.OrderID(order.ID), logging.UserID(order.UserID), logging.Pair(order.CurrencyPair),
		logging.String("side", string(order.Side)), logging.String("orderType", string(order.OrderType)))
	return order, nil
}

func (s *Service) rejectNew(cid, userID string, params CreateOrderParams, reason string) (*Order, error) {
	order := &Order{
		ID:                uuid.NewString(),
		UserID:            userID,
		Side:              params.Side,
		OrderType:         params.OrderType,
		CurrencyPair:      params.CurrencyPair,
		Quantity:          params.Quantity,
		OriginalQuantity:  params.Quantity,
		RemainingQuantity: params.Quantity,
		Price:             params.Price,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	return s.rejectOrder(order, reason)
}

func (s *Service) rejectOrder(order *Order, reason string) (*Order, error) {
	return s.rejectOrderWithErr(order, reason, coreerr.Validation(order.ID, "order rejected: %s", reason))
}

// rejectOrderWithErr transitions order to rejected (spec §4.1 "pending→rejected
// on reservation failure") and indexes/publishes it as terminal, but returns
// err as-is so callers can surface a more specific error kind than Validation
// (e.g. InsufficientFunds on a reservation refusal) while still marking the
// order rejected rather than leaving it stuck pending.
func (s *Service) rejectOrderWithErr(order *Order, reason string, err error) (*Order, error) {
	order.Status = StatusRejected
	order.UpdatedAt = time.Now()
	s.indexOrder(order)
	metrics.RecordOrderTerminal(string(order.OrderType), string(StatusRejected))
	logging.Warn("order rejected", logging.OrderID(order.ID), logging.UserID(order.UserID), logging.String("reason", reason))
	s.bus.Publish(events.Event{
		Kind:          events.KindOrderStatusChanged,
		CorrelationID: order.ID,
		Payload: events.OrderStatusChangedPayload{
			OrderID: order.ID, From: string(StatusPending), To: string(StatusRejected), Reason: reason, UpdatedAt: order.UpdatedAt,
		},
	})
	return order, err
}

func (s *Service) indexOrder(order *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	if s.userOrders[order.UserID] == nil {
		s.userOrders[order.UserID] = make(map[string]bool)
	}
	s.userOrders[order.UserID][order.ID] = true
}

func (s *Service) publishCreated(order *Order) {
	s.bus.Publish(events.Event{
		Kind:          events.KindOrderCreated,
		CorrelationID: order.ID,
		Payload: events.OrderCreatedPayload{
			OrderID: order.ID, UserID: order.UserID, Pair: order.CurrencyPair, Side: string(order.Side), Quantity: order.Quantity.String(),
		},
	})
	s.bus.Publish(events.Event{
		Kind:          events.KindOrderStatusChanged,
		CorrelationID: order.ID,
		Payload: events.OrderStatusChangedPayload{
			OrderID: order.ID, From: string(StatusPending), To: string(StatusSubmitted), UpdatedAt: order.UpdatedAt,
		},
	})
}

// reservationPlan computes which account/currency/amount CreateOrder must
// reserve (spec §4.1's reservation rule), resolving a market-order price
// estimate from the Rate Provider when needed.
func (s *Service) reservationPlan(ctx context.Context, cid string, order *Order) (accountID, currency string, amount money.Amount, err error) {
	base, quote := money.Split(order.CurrencyPair)

	if order.Side == SideSell {
		accountID, err = s.accounts.GetUserAccount(ctx, order.UserID, base)
		if err != nil {
			return "", "", money.Zero, coreerr.Fatal(cid, err, "no account for %s", base)
		}
		return accountID, base, order.Quantity, nil
	}

	var price money.Amount
	switch order.OrderType {
	case TypeLimit, TypeStopLimit:
		price = order.Price
	default:
		rate, rerr := s.rates.GetRate(ctx, base, quote)
		if rerr != nil {
			return "", "", money.Zero, coreerr.DataStale(cid, "rate unavailable for %s/%s: %v", base, quote, rerr)
		}
		if time.Since(rate.Timestamp) > 60*time.Second {
			return "", "", money.Zero, coreerr.DataStale(cid, "stale ask for %s/%s", base, quote)
		}
		slippageBuffer, _ := money.FromFloat(0.005)
		one := money.MustParse("1")
		multiplier, _ := money.Add(one, slippageBuffer)
		estimatedPrice, merr := money.Mul(rate.Ask, multiplier)
		if merr != nil {
			return "", "", money.Zero, coreerr.Fatal(cid, merr, "estimated price overflow")
		}
		price = estimatedPrice
	}

	amount, err = money.Mul(order.Quantity, price)
	if err != nil {
		return "", "", money.Zero, coreerr.Fatal(cid, err, "reservation amount overflow")
	}
	accountID, err = s.accounts.GetUserAccount(ctx, order.UserID, quote)
	if err != nil {
		return "", "", money.Zero, coreerr.Fatal(cid, err, "no account for %s", quote)
	}
	return accountID, quote, amount, nil
}

// CancelOrder releases the remaining reservation and removes the order
// from its book. Cancelling a terminal order is a no-op success.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID, reason string) error {
	lock := s.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, ok := s.GetOrder(orderID)
	if !ok {
		return coreerr.NotFound(orderID, "order not found")
	}
	if order.UserID != userID {
		return coreerr.AccessDenied(orderID, "not the order owner")
	}
	if order.Status.IsTerminal() {
		return nil
	}

	if err := s.releaseReservation(ctx, order); err != nil {
		return err
	}

	from := order.Status
	s.bookFor(order.CurrencyPair).Remove(order.ID)
	order.Status = StatusCancelled
	order.UpdatedAt = time.Now()
	metrics.RecordOrderTerminal(string(order.OrderType), string(StatusCancelled))

	s.bus.Publish(events.Event{
		Kind: events.KindOrderCancelled, CorrelationID: order.ID,
		Payload: events.OrderCancelledPayload{OrderID: order.ID, Reason: reason},
	})
	s.bus.Publish(events.Event{
		Kind: events.KindOrderStatusChanged, CorrelationID: order.ID,
		Payload: events.OrderStatusChangedPayload{OrderID: order.ID, From: string(from), To: string(StatusCancelled), Reason: reason, UpdatedAt: order.UpdatedAt},
	})
	return nil
}

func (s *Service) releaseReservation(ctx context.Context, order *Order) error {
	if money.IsZero(order.ReservedAmount) {
		return nil
	}
	remaining, err := remainingReservation(order)
	if err != nil {
		return coreerr.Fatal(order.ID, err, "residual reservation overflow")
	}
	if money.IsZero(remaining) {
		return nil
	}
	_, err = s.accounts.Release(ctx, order.ReservedAccountID, order.ReservedCurrency, remaining, order.ID)
	if err != nil {
		return coreerr.Fatal(order.ID, err, "release failed")
	}
	return nil
}

// remainingReservation estimates the unconsumed portion of the original
// reservation proportionally to remaining/original quantity.
func remainingReservation(order *Order) (money.Amount, error) {
	if money.IsZero(order.OriginalQuantity) {
		return order.ReservedAmount, nil
	}
	frac, err := money.Quo(order.RemainingQuantity, order.OriginalQuantity)
	if err != nil {
		return money.Zero, err
	}
	return money.Mul(order.ReservedAmount, frac)
}

// ModifyOrder applies caller-supplied field changes. Quantity changes
// re-reserve atomically: the new amount is reserved before the old one is
// released, so a refusal leaves the order untouched.
func (s *Service) ModifyOrder(ctx context.Context, orderID, userID string, params ModifyOrderParams) error {
	lock := s.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, ok := s.GetOrder(orderID)
	if !ok {
		return coreerr.NotFound(orderID, "order not found")
	}
	if order.UserID != userID {
		return coreerr.AccessDenied(orderID, "not the order owner")
	}
	if order.Status != StatusPending && order.Status != StatusSubmitted {
		return coreerr.StateConflict(orderID, "cannot modify order in status %s", order.Status)
	}

	var fields []string

	if params.Quantity != nil {
		oldReservedAccount, oldReservedCurrency, oldReservedAmount := order.ReservedAccountID, order.ReservedCurrency, order.ReservedAmount
		probe := *order
		probe.Quantity = *params.Quantity
		probe.RemainingQuantity, _ = money.Add(*params.Quantity, money.Neg(order.FilledQuantity))
		accountID, currency, amount, err := s.reservationPlan(ctx, orderID, &probe)
		if err != nil {
			return err
		}
		res, err := s.accounts.Reserve(ctx, accountID, currency, amount, orderID)
		if err != nil {
			return coreerr.Fatal(orderID, err, "reservation failed")
		}
		if !res.Success {
			return coreerr.InsufficientFunds(orderID, "reservation refused: %s", res.Failure)
		}
		if !money.IsZero(oldReservedAmount) {
			_, _ = s.accounts.Release(ctx, oldReservedAccount, oldReservedCurrency, oldReservedAmount, orderID)
		}
		order.Quantity = *params.Quantity
		order.OriginalQuantity = *params.Quantity
		order.RemainingQuantity = probe.RemainingQuantity
		order.ReservedAccountID, order.ReservedCurrency, order.ReservedAmount = accountID, currency, amount
		fields = append(fields, "quantity")
	}
	if params.Price != nil {
		order.Price = *params.Price
		fields = append(fields, "price")
	}
	if params.StopPrice != nil {
		order.StopPrice = *params.StopPrice
		fields = append(fields, "stopPrice")
	}
	if params.TimeInForce != nil {
		order.TimeInForce = *params.TimeInForce
		fields = append(fields, "timeInForce")
	}
	if len(fields) == 0 {
		return nil
	}

	order.UpdatedAt = time.Now()
	s.bookFor(order.CurrencyPair).Resort()

	s.bus.Publish(events.Event{
		Kind: events.KindOrderModified, CorrelationID: order.ID,
		Payload: events.OrderModifiedPayload{OrderID: order.ID, Fields: fields},
	})
	return nil
}

// RecordFill applies one execution report from the Execution Engine.
// Idempotent: a duplicate executionId is a silent no-op.
func (s *Service) RecordFill(ctx context.Context, orderID string, fill Fill) error {
	lock := s.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, ok := s.GetOrder(orderID)
	if !ok {
		return coreerr.NotFound(orderID, "order not found")
	}
	for _, f := range order.Fills {
		if f.ExecutionID == fill.ExecutionID {
			return nil
		}
	}
	if order.Status.IsTerminal() {
		return coreerr.StateConflict(orderID, "order already terminal (%s), fill discarded", order.Status)
	}

	from := order.Status
	order.Fills = append(order.Fills, fill)
	order.FilledQuantity, _ = money.Add(order.FilledQuantity, fill.Quantity)
	order.RemainingQuantity, _ = money.Sub(order.OriginalQuantity, order.FilledQuantity)
	order.AverageFillPrice = recomputeAverage(order.Fills)

	to := StatusPartialFilled
	if money.LessThanOrEqual(order.RemainingQuantity, money.Zero) {
		to = StatusFilled
	}
	if !allowedTransition(from, to) && from != to {
		return coreerr.StateConflict(orderID, "illegal transition %s -> %s", from, to)
	}
	order.Status = to
	order.UpdatedAt = time.Now()

	if to == StatusFilled {
		s.bookFor(order.CurrencyPair).Remove(order.ID)
		if err := s.releaseReservation(ctx, order); err != nil {
			return err
		}
		metrics.RecordOrderTerminal(string(order.OrderType), string(StatusFilled))
	}

	if from != to {
		s.bus.Publish(events.Event{
			Kind: events.KindOrderStatusChanged, CorrelationID: order.ID,
			Payload: events.OrderStatusChangedPayload{OrderID: order.ID, From: string(from), To: string(to), UpdatedAt: order.UpdatedAt},
		})
	}
	return nil
}

func recomputeAverage(fills []Fill) money.Amount {
	var num money.Amount
	var den money.Amount
	for _, f := range fills {
		contrib, err := money.Mul(f.Quantity, f.Price)
		if err != nil {
			continue
		}
		num, _ = money.Add(num, contrib)
		den, _ = money.Add(den, f.Quantity)
	}
	if money.IsZero(den) {
		return money.Zero
	}
	avg, err := money.Quo(num, den)
	if err != nil {
		return money.Zero
	}
	return avg
}

// GetOrder returns the order by id.
func (s *Service) GetOrder(id string) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// ListUserOrders returns userID's orders, optionally narrowed by filters.
func (s *Service) ListUserOrders(userID string, filters ListFilters) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Order
	for id := range s.userOrders[userID] {
		o := s.orders[id]
		if o == nil {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		if filters.CurrencyPair != "" && o.CurrencyPair != filters.CurrencyPair {
			continue
		}
		out = append(out, o)
	}
	return out
}

// GetOrderBook returns a priority-ordered snapshot of pair's book.
func (s *Service) GetOrderBook(pair string, depth int) (buy, sell []BookEntry) {
	return s.bookFor(pair).Snapshot(depth)
}

func computeExpiry(p CreateOrderParams, createdAt time.Time, orderExpiryHours int) time.Time {
	if !p.ExpiresAt.IsZero() {
		return p.ExpiresAt
	}
	switch p.TimeInForce {
	case TIFDAY:
		y, m, d := createdAt.Date()
		return time.Date(y, m, d, 23, 59, 59, 999999999, createdAt.Location())
	case TIFIOC, TIFFOK:
		return createdAt.Add(1 * time.Second)
	case TIFGTC:
		return time.Time{}
	default:
		return createdAt.Add(time.Duration(orderExpiryHours) * time.Hour)
	}
}

