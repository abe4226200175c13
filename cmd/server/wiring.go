package main

import (
	"context"
	"time"

	"github.com/epic1st/fxcore/archive"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/oms"
	"github.com/epic1st/fxcore/settlement"
)

const shutdownGrace = 10 * time.Second

// wireArchival subscribes the archive store to every terminal transition so
// orders and settlements land in Postgres once the in-memory core has no
// further use for them (spec §9). If store is nil (Postgres unavailable at
// boot) this is a no-op — archival degrades gracefully rather than blocking
// the rest of the process.
func wireArchival(bus *events.Bus, orders *oms.Service, settle *settlement.Service, store *archive.Store) {
	if store == nil {
		return
	}

	bus.Subscribe(events.KindOrderStatusChanged, func(ev events.Event) {
		payload, ok := ev.Payload.(events.OrderStatusChangedPayload)
		if !ok {
			return
		}
		order, ok := orders.GetOrder(payload.OrderID)
		if !ok || !order.Status.IsTerminal() {
			return
		}
		if err := store.ArchiveOrder(context.Background(), order); err != nil {
			logging.Error("failed to archive order", err, logging.OrderID(order.ID))
		}
	})

	archiveSettlement := func(settlementID string) {
		st, ok := settle.GetSettlement(settlementID)
		if !ok {
			return
		}
		if err := store.ArchiveSettlement(context.Background(), st); err != nil {
			logging.Error("failed to archive settlement", err, logging.SettlementID(st.ID))
		}
	}
	bus.Subscribe(events.KindSettlementProcessed, func(ev events.Event) {
		if payload, ok := ev.Payload.(events.SettlementProcessedPayload); ok {
			archiveSettlement(payload.SettlementID)
		}
	})
	bus.Subscribe(events.KindSettlementFailed, func(ev events.Event) {
		if payload, ok := ev.Payload.(events.SettlementFailedPayload); ok {
			archiveSettlement(payload.SettlementID)
		}
	})
}
