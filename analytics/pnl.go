package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
)

// RunPnLLoop ticks every cfg.PnLCalculationInterval, revaluing every
// user's open positions against live rates (spec §4.4 "P&L loop").
func (s *Service) RunPnLLoop(ctx context.Context) error {
	interval := s.cfg.PnLCalculationInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	for _, userID := range s.allUserIDs() {
		s.revalueUser(ctx, userID)
	}
}

func (s *Service) revalueUser(ctx context.Context, userID string) {
	positions := s.ListUserPositions(userID)

	var realized, unrealized money.Amount = s.ledgerRealizedPnL(userID), money.Zero
	exposure := make(map[string]CurrencyExposure)
	staleCurrency := make(map[string]bool)
	partial := false

	for _, pos := range positions {
		sum, err := money.Add(realized, pos.RealizedPnL)
		if err == nil {
			realized = sum
		}

		base, quote := money.Split(pos.CurrencyPair)

		rate, err := s.rates.GetRate(ctx, base, quote)
		stale := err != nil || s.rateIsStale(rate)
		if stale {
			partial = true
			metrics.RecordStalePnL()
			s.mu.Lock()
			pos.Stale = true
			s.mu.Unlock()
			// carry the prior numeric value forward (spec §4.4 "Failure
			// semantics"), never replace it with zero.
			sum, err := money.Add(unrealized, pos.UnrealizedPnL)
			if err == nil {
				unrealized = sum
			}
			staleCurrency[base] = true
			exposure[base] = combineExposure(exposure[base], pos.Quantity, nil)
			continue
		}

		diff, err := money.Sub(rate.Mid, pos.AveragePrice)
		if err != nil {
			continue
		}
		posPnL, err := money.Mul(pos.Quantity, diff)
		if err != nil {
			continue
		}

		// posPnL is denominated in quote; convert to the configured base
		// currency (spec §4.4 "Convert every (currency → baseCurrency) via
		// live rate") before folding it into the user's aggregate totals.
		baseUnrealized, convErr := s.convertToBase(ctx, quote, posPnL)
		if convErr != nil {
			partial = true
			metrics.RecordStalePnL()
			s.mu.Lock()
			pos.Stale = true
			s.mu.Unlock()
			sum, err := money.Add(unrealized, pos.UnrealizedPnL)
			if err == nil {
				unrealized = sum
			}
			staleCurrency[base] = true
			exposure[base] = combineExposure(exposure[base], pos.Quantity, nil)
			continue
		}

		s.mu.Lock()
		pos.UnrealizedPnL = baseUnrealized
		pos.Stale = false
		pos.LastPricedAt = time.Now()
		s.mu.Unlock()

		sum, err = money.Add(unrealized, baseUnrealized)
		if err == nil {
			unrealized = sum
		}

		// Exposure is keyed by the pair's base currency: Local is the signed
		// quantity held in it, Base its mid-rate notional in cfg.BaseCurrency.
		baseAmount, err := money.Mul(pos.Quantity, rate.Mid)
		if err == nil {
			baseAmount, err = s.convertToBase(ctx, quote, baseAmount)
		}
		if err != nil {
			staleCurrency[base] = true
			exposure[base] = combineExposure(exposure[base], pos.Quantity, nil)
			continue
		}
		exposure[base] = combineExposure(exposure[base], pos.Quantity, &baseAmount)
	}

	for currency := range staleCurrency {
		entry := exposure[currency]
		entry.Base = nil
		exposure[currency] = entry
	}

	total, err := money.Add(realized, unrealized)
	if err != nil {
		total = realized
	}

	snapshot := &PnLSnapshot{
		UserID: userID, RealizedPnL: realized, UnrealizedPnL: unrealized, TotalPnL: total,
		CurrencyExposure: exposure, CalculatedAt: time.Now(), Partial: partial,
	}

	s.mu.Lock()
	s.snapshots[userID] = snapshot
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Kind: events.KindPnLCalculated, CorrelationID: userID,
		Payload: events.PnLCalculatedPayload{
			UserID: userID, RealizedPnL: realized.String(), UnrealizedPnL: unrealized.String(),
			TotalPnL: total.String(), Partial: partial,
		},
	})
}

var errConversionStale = errors.New("analytics: base-currency conversion rate stale or unavailable")

// convertToBase converts amount, denominated in currency, into the
// configured base currency via the live mid rate. currency ==
// baseCurrency is the common case and needs no lookup.
func (s *Service) convertToBase(ctx context.Context, currency string, amount money.Amount) (money.Amount, error) {
	if currency == s.cfg.BaseCurrency {
		return amount, nil
	}
	rate, err := s.rates.GetRate(ctx, currency, s.cfg.BaseCurrency)
	if err != nil {
		return money.Zero, err
	}
	if s.rateIsStale(rate) {
		return money.Zero, errConversionStale
	}
	return money.Mul(amount, rate.Mid)
}

// rateIsStale applies the configured rateValidityPeriod threshold (spec
// §6 "Rate Provider", default 60 s).
func (s *Service) rateIsStale(rate externals.Rate) bool {
	validity := s.cfg.RateValidityPeriod
	if validity <= 0 {
		validity = 60 * time.Second
	}
	if rate.Timestamp.IsZero() {
		return true
	}
	return time.Since(rate.Timestamp) > validity
}

// combineExposure folds one position's contribution into currency's
// running exposure entry. The caller nulls out Base afterward for any
// currency that had even one stale leg (spec §4.4 "Rate conversion gaps
// set the exposure entry's baseCurrencyAmount to null").
func combineExposure(existing CurrencyExposure, qty money.Amount, base *money.Amount) CurrencyExposure {
	local, err := money.Add(existing.Local, qty)
	if err != nil {
		local = existing.Local
	}
	out := CurrencyExposure{Local: local}
	if base == nil {
		return out
	}
	if existing.Base == nil {
		sum := *base
		out.Base = &sum
		return out
	}
	sum, err := money.Add(*existing.Base, *base)
	if err != nil {
		return out
	}
	out.Base = &sum
	return out
}
