package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
)

// RunProcessor ticks every cfg.ProcessorInterval, collecting eligible
// settlements and driving them to settled (spec §4.3 "Scheduling model").
func (s *Service) RunProcessor(ctx context.Context) error {
	interval := s.cfg.ProcessorInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.processTick(ctx, now)
		}
	}
}

func (s *Service) processTick(ctx context.Context, now time.Time) {
	eligible := s.collectEligible(now)
	if len(eligible) == 0 {
		return
	}

	if s.cfg.EnableNetting {
		groups := groupByCounterpartyAndDate(eligible)
		for _, group := range groups {
			if len(group) == 1 {
				s.processSettlementDirect(ctx, group[0], now)
				continue
			}
			if err := s.processBatch(ctx, group, now); err != nil {
				logging.Warn("settlement: batch failed, falling back to direct processing", logging.Any("reason", err.Error()))
				for _, st := range group {
					s.processSettlementDirect(ctx, st, now)
				}
			}
		}
		return
	}

	for _, st := range eligible {
		s.processSettlementDirect(ctx, st, now)
	}
}

// collectEligible returns pending settlements whose settlement date has
// arrived and whose retry backoff (if any) has elapsed.
func (s *Service) collectEligible(now time.Time) []*Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Settlement
	for _, st := range s.settlements {
		if st.Status != StatusPending {
			continue
		}
		if st.SettlementDate.After(now) {
			continue
		}
		if !st.NextRetryAt.IsZero() && st.NextRetryAt.After(now) {
			continue
		}
		out = append(out, st)
	}
	return out
}

func groupByCounterpartyAndDate(settlements []*Settlement) [][]*Settlement {
	keyed := make(map[string][]*Settlement)
	var order []string
	for _, st := range settlements {
		key := st.CounterpartyID + "|" + st.SettlementDate.Format("2006-01-02")
		if _, ok := keyed[key]; !ok {
			order = append(order, key)
		}
		keyed[key] = append(keyed[key], st)
	}
	groups := make([][]*Settlement, 0, len(order))
	for _, key := range order {
		groups = append(groups, keyed[key])
	}
	return groups
}

// processBatch nets group's settlements into one NettingBatch and settles
// every net leg atomically: any leg failure aborts the whole batch without
// mutating member settlements, so the caller can fall back to direct
// per-settlement processing (spec §4.3 "If a batch fails, fall back to
// per-settlement processing so a single bad one cannot block the group").
func (s *Service) processBatch(ctx context.Context, group []*Settlement, now time.Time) error {
	cleared := group[:0:0]
	for _, st := range group {
		if approved, checked := s.checkCompliance(ctx, st); checked && !approved {
			continue // checkCompliance already marked st failed with an alert
		}
		cleared = append(cleared, st)
	}
	if len(cleared) == 0 {
		return nil
	}
	group = cleared

	batch := computeNetting(uuid.NewString(), group)
	for i, leg := range batch.Legs {
		if err := s.settleLeg(ctx, leg.Type, leg.Currency, leg.Amount, batch.CounterpartyID, batch.SettlementDate); err != nil {
			return fmt.Errorf("netting leg %s %s failed: %w", leg.Type, leg.Currency, err)
		}
		batch.Legs[i].Status = LegStatusCompleted
	}
	batch.Status = StatusSettled

	s.mu.Lock()
	for _, st := range group {
		st.Status = StatusSettled
		st.BatchID = batch.ID
		st.UpdatedAt = now
	}
	s.mu.Unlock()

	metrics.ObserveNettingBatchSize(batch.CounterpartyID, len(group))
	for _, st := range group {
		metrics.RecordSettlementTerminal(st.SettlementCycle, string(StatusSettled))
		s.bus.Publish(events.Event{
			Kind: events.KindSettlementProcessed, CorrelationID: st.ID,
			Payload: events.SettlementProcessedPayload{SettlementID: st.ID, BatchID: batch.ID},
		})
	}
	s.bus.Publish(events.Event{
		Kind: events.KindNettingGroupProc, CorrelationID: batch.ID,
		Payload: events.NettingGroupProcessedPayload{BatchID: batch.ID, CounterpartyID: batch.CounterpartyID, SettledCount: len(group)},
	})
	logging.Info("netting batch settled", logging.BatchID(batch.ID), logging.Int("settlementCount", len(group)))
	return nil
}

// processSettlementDirect settles st's two legs without netting, applying
// the compliance veto and the retry/failure rules of spec §4.3 "Failure
// semantics".
func (s *Service) processSettlementDirect(ctx context.Context, st *Settlement, now time.Time) {
	if veto, checked := s.checkCompliance(ctx, st); checked && !veto {
		return
	}

	for i, leg := range st.Legs {
		if leg.Status == LegStatusCompleted {
			continue
		}
		err := s.settleLeg(ctx, leg.Type, leg.Currency, leg.Amount, st.CounterpartyID, st.SettlementDate)
		if err == nil {
			st.Legs[i].Status = LegStatusCompleted
			continue
		}
		s.handleLegFailure(st, err, now)
		return
	}

	s.mu.Lock()
	st.Status = StatusSettled
	st.UpdatedAt = now
	s.mu.Unlock()

	metrics.RecordSettlementTerminal(st.SettlementCycle, string(StatusSettled))
	s.bus.Publish(events.Event{
		Kind: events.KindSettlementProcessed, CorrelationID: st.ID,
		Payload: events.SettlementProcessedPayload{SettlementID: st.ID},
	})
	logging.Info("settlement settled", logging.SettlementID(st.ID))
}

// handleLegFailure distinguishes fatal (nostro shortfall, compliance) from
// retryable (payment system transient, receive not yet arrived) leg errors.
func (s *Service) handleLegFailure(st *Settlement, cause error, now time.Time) {
	fatal, ok := cause.(*fatalLegError)
	if ok {
		s.failSettlement(st, fatal.Error(), false)
		return
	}

	st.RetryCount++
	if st.RetryCount > s.cfg.RetryAttempts {
		s.failSettlement(st, cause.Error(), false)
		return
	}

	delay := s.cfg.RetryDelay * time.Duration(st.RetryCount)
	s.mu.Lock()
	st.NextRetryAt = now.Add(delay)
	st.UpdatedAt = now
	s.mu.Unlock()

	metrics.RecordSettlementRetry(cause.Error())
	logging.Warn("settlement leg failed, scheduling retry", logging.SettlementID(st.ID), logging.Int("retryCount", st.RetryCount))
}

func (s *Service) failSettlement(st *Settlement, reason string, retryable bool) {
	s.mu.Lock()
	st.Status = StatusFailed
	st.FailureReason = reason
	st.UpdatedAt = time.Now()
	s.mu.Unlock()

	metrics.RecordSettlementTerminal(st.SettlementCycle, string(StatusFailed))
	s.bus.Publish(events.Event{
		Kind: events.KindSettlementFailed, CorrelationID: st.ID,
		Payload: events.SettlementFailedPayload{SettlementID: st.ID, Reason: reason, Retryable: retryable},
	})
	s.bus.Publish(events.Event{
		Kind: events.KindAlert,
		Payload: events.AlertPayload{Component: "settlement", Message: fmt.Sprintf("settlement %s failed: %s", st.ID, reason), Severity: "critical"},
	})
	logging.Error("settlement failed terminally", fmt.Errorf("%s", reason), logging.SettlementID(st.ID))
}

// checkCompliance runs the optional compliance veto (spec §4.3 "Compliance
// veto at settlement"). checked is false when no checker is configured, in
// which case the caller should proceed as approved.
func (s *Service) checkCompliance(ctx context.Context, st *Settlement) (approved, checked bool) {
	if s.compliance == nil {
		return true, false
	}
	params := externals.OrderRiskParams{
		UserID: st.UserID, Pair: st.CurrencyPair, Side: externals.Side(st.Side), Quantity: st.Quantity, Price: st.Price,
	}
	assessment, err := s.compliance.CheckSettlement(ctx, st.ID, params)
	if err != nil {
		logging.Warn("settlement: compliance check errored, treating as approved", logging.SettlementID(st.ID))
		return true, true
	}
	if !assessment.Approved {
		s.failSettlement(st, "compliance veto: "+assessment.Reason, false)
		return false, true
	}
	return true, true
}

// settleLeg moves one currency leg through the nostro account and the
// external payment system (spec §4.3 "Pay leg" / "Receive leg").
func (s *Service) settleLeg(ctx context.Context, legType LegType, currency string, amount money.Amount, counterpartyID string, valueDate time.Time) error {
	switch legType {
	case LegPay:
		if err := s.nostro.Debit(ctx, currency, amount); err != nil {
			return &fatalLegError{fmt.Errorf("nostro debit %s %s: %w", amount, currency, err)}
		}
		instr := externals.PaymentInstruction{
			Currency: currency, Amount: amount, CounterpartyID: counterpartyID,
			Method: selectPaymentMethod(currency, amount), Priority: selectPriority(amount), ValueDate: valueDate,
		}
		result, err := s.payments.SendPayment(ctx, instr)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("payment system rejected pay leg for %s %s", amount, currency)
		}
		return nil
	case LegReceive:
		query := externals.IncomingPaymentQuery{Currency: currency, Amount: amount, CounterpartyID: counterpartyID, ExpectedDate: valueDate}
		result, err := s.payments.CheckIncomingPayment(ctx, query)
		if err != nil {
			return err
		}
		if !result.Received {
			return fmt.Errorf("incoming payment for %s %s not yet received", amount, currency)
		}
		if err := s.nostro.Credit(ctx, currency, amount); err != nil {
			return &fatalLegError{fmt.Errorf("nostro credit %s %s: %w", amount, currency, err)}
		}
		return nil
	default:
		return fmt.Errorf("unknown leg type %s", legType)
	}
}

// fatalLegError marks a leg failure as non-retryable (nostro insufficient
// balance, per spec §4.3 "Failure semantics").
type fatalLegError struct{ cause error }

func (e *fatalLegError) Error() string { return e.cause.Error() }
func (e *fatalLegError) Unwrap() error { return e.cause }
