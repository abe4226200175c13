package analytics

import (
	"sort"
	"time"

	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/money"
)

// GenerateDailyReport rolls every tracked user's volume, trade count, and
// P&L into one end-of-day report (spec §4.4 "Daily report"). A report is
// a point-in-time read; AE keeps no retention beyond the current session
// (spec Non-goals).
func (s *Service) GenerateDailyReport(date time.Time) DailyReport {
	start := time.Now()

	var summaries []UserDailySummary
	var marketVolume = money.Zero
	alertCount := 0

	for _, userID := range s.allUserIDs() {
		positions := s.ListUserPositions(userID)

		var volume = money.Zero
		tradeCount := 0
		ledgerRealized, _, ledgerTrades := s.ledgerSnapshot(userID)
		realized := ledgerRealized
		var unrealized = money.Zero
		allTrades := append([]Trade(nil), ledgerTrades...)
		tradeCount += len(ledgerTrades)
		for _, tr := range ledgerTrades {
			if sum, err := money.Add(volume, moneyNotional(tr)); err == nil {
				volume = sum
			}
		}

		for _, pos := range positions {
			if sum, err := money.Add(realized, pos.RealizedPnL); err == nil {
				realized = sum
			}
			if sum, err := money.Add(unrealized, pos.UnrealizedPnL); err == nil {
				unrealized = sum
			}
			tradeCount += len(pos.Trades)
			allTrades = append(allTrades, pos.Trades...)
			for _, tr := range pos.Trades {
				notional, err := money.Mul(tr.Quantity, tr.Price)
				if err != nil {
					continue
				}
				if sum, err := money.Add(volume, notional); err == nil {
					volume = sum
				}
			}
		}

		if sum, err := money.Add(marketVolume, volume); err == nil {
			marketVolume = sum
		}

		sort.Slice(allTrades, func(i, j int) bool {
			return money.GreaterThan(moneyNotional(allTrades[i]), moneyNotional(allTrades[j]))
		})
		top := allTrades
		if len(top) > 5 {
			top = top[:5]
		}

		if snap, ok := s.GetSnapshot(userID); ok && snap.Partial {
			alertCount++
		}

		summaries = append(summaries, UserDailySummary{
			UserID: userID, Volume: volume, TradeCount: tradeCount,
			RealizedPnL: realized, UnrealizedPnL: unrealized, TopTrades: top,
		})
	}

	report := DailyReport{Date: date, Users: summaries, AlertCount: alertCount, MarketVolume: marketVolume}

	s.bus.Publish(events.Event{
		Kind:    events.KindDailyReportGenerated,
		Payload: events.DailyReportGeneratedPayload{Date: date, UserCount: len(summaries), AlertCount: alertCount},
	})
	metrics.ObserveDailyReport(float64(time.Since(start).Milliseconds()))
	logging.Info("daily report generated", logging.Int("userCount", len(summaries)), logging.Int("alertCount", alertCount))
	return report
}

func moneyNotional(t Trade) money.Amount {
	n, err := money.Mul(t.Quantity, t.Price)
	if err != nil {
		return money.Zero
	}
	return n
}
