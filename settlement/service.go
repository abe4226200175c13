package settlement

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Service is the Settlement Engine. It owns Settlements and NettingBatches
// (spec §3 "Ownership"); it references OM orders only by id, through
// oms.Service's read methods.
type Service struct {
	cfg        config.SettlementConfig
	commission money.Amount
	orders     *oms.Service
	payments   externals.PaymentSystem
	nostro     externals.Nostro
	compliance externals.ComplianceChecker // nil: always-approved
	bus        *events.Bus

	mu          sync.RWMutex
	settlements map[string]*Settlement
}

// NewService constructs a Settlement Engine and subscribes it to OM/EE
// slice-fill events so every completed fill becomes a Settlement
// automatically (spec §4.3 "On every completed OM fill, create a
// Settlement"). compliance may be nil.
func NewService(cfg config.SettlementConfig, orders *oms.Service, payments externals.PaymentSystem, nostro externals.Nostro, compliance externals.ComplianceChecker, bus *events.Bus) *Service {
	commission, err := money.Parse(cfg.CommissionRate)
	if err != nil {
		commission = money.MustParse("0.001")
	}
	s := &Service{
		cfg:         cfg,
		commission:  commission,
		orders:      orders,
		payments:    payments,
		nostro:      nostro,
		compliance:  compliance,
		bus:         bus,
		settlements: make(map[string]*Settlement),
	}
	bus.Subscribe(events.KindSliceExecuted, s.onSliceExecuted)
	return s
}

func (s *Service) onSliceExecuted(ev events.Event) {
	payload, ok := ev.Payload.(events.SliceExecutedPayload)
	if !ok {
		return
	}
	order, ok := s.orders.GetOrder(payload.OrderID)
	if !ok {
		logging.Warn("settlement: slice-executed for unknown order, skipping", logging.OrderID(payload.OrderID))
		return
	}
	quantity, qErr := money.Parse(payload.Quantity)
	price, pErr := money.Parse(payload.Price)
	if qErr != nil || pErr != nil {
		logging.Warn("settlement: unparseable fill amounts, skipping", logging.OrderID(payload.OrderID), logging.ExecutionID(payload.ExecutionID))
		return
	}
	if _, err := s.CreateSettlement(order, payload.ExecutionID, payload.ProviderID, quantity, price); err != nil {
		logging.Error("settlement: failed to create settlement from fill", err, logging.OrderID(payload.OrderID), logging.ExecutionID(payload.ExecutionID))
	}
}

// CreateSettlement builds and indexes a two-legged Settlement for one
// completed fill (spec §3 "Settlement", §4.3 "Settlement creation").
func (s *Service) CreateSettlement(order *oms.Order, tradeID, counterpartyID string, quantity, price money.Amount) (*Settlement, error) {
	base, quote := money.Split(order.CurrencyPair)

	gross, err := money.Mul(quantity, price)
	if err != nil {
		return nil, err
	}
	commissionAmt, err := money.Mul(gross, s.commission)
	if err != nil {
		return nil, err
	}
	net, err := money.Sub(gross, commissionAmt)
	if err != nil {
		return nil, err
	}

	cycle := cycleForPair(order.CurrencyPair, s.cfg)
	now := time.Now()
	settlementDate := settlementDateFor(now, cycle)

	var legs [2]Leg
	if order.Side == oms.SideBuy {
		legs = [2]Leg{
			{Type: LegReceive, Currency: base, Amount: quantity, Status: LegStatusPending},
			{Type: LegPay, Currency: quote, Amount: net, Status: LegStatusPending},
		}
	} else {
		legs = [2]Leg{
			{Type: LegPay, Currency: base, Amount: quantity, Status: LegStatusPending},
			{Type: LegReceive, Currency: quote, Amount: net, Status: LegStatusPending},
		}
	}

	settlement := &Settlement{
		ID:              uuid.NewString(),
		TradeID:         tradeID,
		OrderID:         order.ID,
		UserID:          order.UserID,
		CounterpartyID:  counterpartyID,
		CurrencyPair:    order.CurrencyPair,
		Side:            order.Side,
		Quantity:        quantity,
		Price:           price,
		GrossAmount:     gross,
		NetAmount:       net,
		Commission:      commissionAmt,
		SettlementCycle: cycle,
		SettlementDate:  settlementDate,
		ValueDate:       settlementDate,
		Status:          StatusPending,
		Legs:            legs,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	s.settlements[settlement.ID] = settlement
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Kind: events.KindSettlementCreated, CorrelationID: settlement.ID,
		Payload: events.SettlementCreatedPayload{
			SettlementID: settlement.ID, TradeID: tradeID, CounterpartyID: counterpartyID, SettlementDate: settlementDate,
		},
	})
	logging.Info("settlement created", logging.SettlementID(settlement.ID), logging.OrderID(order.ID), logging.Pair(order.CurrencyPair))
	return settlement, nil
}

// GetSettlement returns a settlement by id.
func (s *Service) GetSettlement(id string) (*Settlement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[id]
	return st, ok
}

// ListUserSettlements returns userID's settlements.
func (s *Service) ListUserSettlements(userID string) []*Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Settlement
	for _, st := range s.settlements {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out
}

func (s *Service) mark(settlementID string, status Status, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID]
	if !ok {
		return
	}
	st.Status = status
	st.FailureReason = reason
	st.UpdatedAt = time.Now()
}
