package analytics

import (
	"sync"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
	"github.com/epic1st/fxcore/oms"
)

// Service is the Analytics Engine. It owns Positions and PnLSnapshots
// (spec §3 "Ownership"); it references OM orders only by id, through
// oms.Service's read methods, to resolve userId/pair/side off a fill
// event (spec §2 "AE listens to OM fills and SE settlements").
type Service struct {
	cfg    config.AnalyticsConfig
	orders *oms.Service
	rates  externals.RateProvider
	bus    *events.Bus

	mu        sync.RWMutex
	positions map[string]map[string]*Position // userID -> pair -> position
	snapshots map[string]*PnLSnapshot         // userID -> last snapshot
	ledger    map[string]*userLedger          // userID -> closed-position accumulator
}

// NewService constructs an Analytics Engine and subscribes it to OM/EE
// fill events.
func NewService(cfg config.AnalyticsConfig, orders *oms.Service, rates externals.RateProvider, bus *events.Bus) *Service {
	s := &Service{
		cfg: cfg, orders: orders, rates: rates, bus: bus,
		positions: make(map[string]map[string]*Position),
		snapshots: make(map[string]*PnLSnapshot),
		ledger:    make(map[string]*userLedger),
	}
	bus.Subscribe(events.KindSliceExecuted, s.onFill)
	return s
}

func (s *Service) onFill(ev events.Event) {
	payload, ok := ev.Payload.(events.SliceExecutedPayload)
	if !ok {
		return
	}
	order, ok := s.orders.GetOrder(payload.OrderID)
	if !ok {
		logging.Warn("analytics: slice-executed for unknown order, skipping", logging.OrderID(payload.OrderID))
		return
	}
	qty, qErr := money.Parse(payload.Quantity)
	price, pErr := money.Parse(payload.Price)
	if qErr != nil || pErr != nil {
		logging.Warn("analytics: unparseable fill amounts, skipping", logging.ExecutionID(payload.ExecutionID))
		return
	}
	if err := s.RecordTrade(order.UserID, order.CurrencyPair, payload.ExecutionID, order.Side, qty, price); err != nil {
		logging.Error("analytics: failed to fold fill into position", err, logging.OrderID(payload.OrderID))
	}
}

// RecordTrade folds one fill into userID's position for pair (spec §4.4
// "Position update"). Exposed directly so callers that already have the
// originating order (cmd/server's wiring) can avoid re-deriving side/pair
// from the event payload.
func (s *Service) RecordTrade(userID, pair, tradeID string, side oms.Side, qty, price money.Amount) error {
	s.mu.Lock()
	byPair, ok := s.positions[userID]
	if !ok {
		byPair = make(map[string]*Position)
		s.positions[userID] = byPair
	}
	pos, ok := byPair[pair]
	if !ok {
		pos = &Position{UserID: userID, CurrencyPair: pair}
		byPair[pair] = pos
	}
	err := applyFill(pos, tradeID, side, qty, price)
	flat := money.IsZero(pos.Quantity)
	if flat {
		s.foldIntoLedgerLocked(userID, pos)
		delete(byPair, pair)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.bus.Publish(events.Event{
		Kind: events.KindTradeAnalyzed, CorrelationID: tradeID,
		Payload: events.TradeAnalyzedPayload{UserID: userID, Pair: pair, Qty: qty.String()},
	})
	metrics.SetPositionCount(s.positionCount())
	return nil
}

// foldIntoLedgerLocked folds a just-closed position's realized P&L and
// trade history into userID's ledger. Caller must hold s.mu.
func (s *Service) foldIntoLedgerLocked(userID string, pos *Position) {
	l, ok := s.ledger[userID]
	if !ok {
		l = &userLedger{RealizedPnL: money.Zero}
		s.ledger[userID] = l
	}
	if sum, err := money.Add(l.RealizedPnL, pos.RealizedPnL); err == nil {
		l.RealizedPnL = sum
	}
	l.ClosedPnLs = append(l.ClosedPnLs, pos.RealizedPnL)
	l.Trades = append(l.Trades, pos.Trades...)
}

// ledgerRealizedPnL returns the cumulative realized P&L folded from every
// position userID has ever closed (spec §3: per-user realizedPnL is
// cumulative, not just over currently-open positions).
func (s *Service) ledgerRealizedPnL(userID string) money.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledger[userID]
	if !ok {
		return money.Zero
	}
	return l.RealizedPnL
}

// ledgerSnapshot returns a copy of userID's closed-position realized P&L,
// per-closure P&L list, and trade history for report/metrics rollups.
func (s *Service) ledgerSnapshot(userID string) (money.Amount, []money.Amount, []Trade) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledger[userID]
	if !ok {
		return money.Zero, nil, nil
	}
	closed := make([]money.Amount, len(l.ClosedPnLs))
	copy(closed, l.ClosedPnLs)
	trades := make([]Trade, len(l.Trades))
	copy(trades, l.Trades)
	return l.RealizedPnL, closed, trades
}

func (s *Service) positionCount() int {
	n := 0
	for _, byPair := range s.positions {
		n += len(byPair)
	}
	return n
}

// GetPosition returns userID's position in pair, if any.
func (s *Service) GetPosition(userID, pair string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byPair, ok := s.positions[userID]
	if !ok {
		return nil, false
	}
	pos, ok := byPair[pair]
	return pos, ok
}

// ListUserPositions returns every open position for userID.
func (s *Service) ListUserPositions(userID string) []*Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byPair, ok := s.positions[userID]
	if !ok {
		return nil
	}
	out := make([]*Position, 0, len(byPair))
	for _, pos := range byPair {
		out = append(out, pos)
	}
	return out
}

// GetSnapshot returns userID's last computed P&L snapshot.
func (s *Service) GetSnapshot(userID string) (*PnLSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID]
	return snap, ok
}

// allUserIDs returns every user id with an open position, a prior
// snapshot, or a closed-position ledger entry, so a user whose last
// position just closed still gets revalued.
func (s *Service) allUserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for userID := range s.positions {
		seen[userID] = true
	}
	for userID := range s.snapshots {
		seen[userID] = true
	}
	for userID := range s.ledger {
		seen[userID] = true
	}
	out := make([]string, 0, len(seen))
	for userID := range seen {
		out = append(out, userID)
	}
	return out
}
