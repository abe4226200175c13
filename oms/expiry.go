package oms

import (
	"context"
	"time"

	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
)

// RunExpirySweep starts the 60s expiry sweep (spec §4.1 "Expiry"). It
// blocks until ctx is cancelled; callers run it in its own goroutine.
func (s *Service) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	start := time.Now()
	now := start

	s.mu.RLock()
	candidates := make([]*Order, 0)
	for _, o := range s.orders {
		if o.Status.IsTerminal() || o.ExpiresAt.IsZero() {
			continue
		}
		if !o.ExpiresAt.After(now) {
			candidates = append(candidates, o)
		}
	}
	s.mu.RUnlock()

	for _, o := range candidates {
		s.expireOne(ctx, o.ID)
	}
	metrics.ObserveExpirySweep(float64(time.Since(start).Milliseconds()))
}

func (s *Service) expireOne(ctx context.Context, orderID string) {
	lock := s.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, ok := s.GetOrder(orderID)
	if !ok || order.Status.IsTerminal() {
		return
	}

	if err := s.releaseReservation(ctx, order); err != nil {
		logging.Error("expiry release failed", err, logging.OrderID(order.ID))
		return
	}

	from := order.Status
	s.bookFor(order.CurrencyPair).Remove(order.ID)
	order.Status = StatusExpired
	order.UpdatedAt = time.Now()
	metrics.RecordOrderTerminal(string(order.OrderType), string(StatusExpired))

	s.bus.Publish(events.Event{
		Kind: events.KindOrderStatusChanged, CorrelationID: order.ID,
		Payload: events.OrderStatusChangedPayload{OrderID: order.ID, From: string(from), To: string(StatusExpired), Reason: "expired", UpdatedAt: order.UpdatedAt},
	})
	logging.Info("order expired", logging.OrderID(order.ID), logging.Pair(order.CurrencyPair))
}
