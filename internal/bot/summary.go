package bot

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/trading/risk"
	"github.com/Alias1177/HydraX/models"
)

// SummaryStore persists the dashboard snapshot
type SummaryStore interface {
	SaveDailySummary(models.DailySummary) error
	LoadDailySummary() (models.DailySummary, bool)
}

// SummaryTracker maintains daily_summary_state.json and announces the
// previous day's figures when the UTC date changes
type SummaryTracker struct {
	store    SummaryStore
	risk     *risk.Engine
	notifier models.Notifier
	leverage float64
	now      func() time.Time
	logger   zerolog.Logger

	last models.DailySummary
	base float64 // balance at the start of the current day
	peak float64
}

// NewSummaryTracker restores the last snapshot so the peak equity and the
// date survive restarts
func NewSummaryTracker(store SummaryStore, riskEngine *risk.Engine, notifier models.Notifier, leverage float64) *SummaryTracker {
	if leverage <= 0 {
		leverage = 1
	}
	s := &SummaryTracker{
		store:    store,
		risk:     riskEngine,
		notifier: notifier,
		leverage: leverage,
		now:      time.Now,
		logger:   log.With().Str("component", "daily_summary").Logger(),
		base:     riskEngine.Balance(),
	}
	if store != nil {
		if prev, ok := store.LoadDailySummary(); ok && prev.Balance > 0 {
			s.last = prev
			s.peak = prev.PeakEquity
			s.base = prev.Balance
			if prev.Date == riskEngine.State().Date {
				s.base = prev.Balance - prev.DailyPnL
			}
		}
	}
	return s
}

// Update recomputes the snapshot from the risk state and open positions,
// writes it, and returns it. status is overridden to halted while a breaker
// is open.
func (s *SummaryTracker) Update(positions []models.OpenPosition, status string) models.DailySummary {
	now := s.now().UTC()
	st := s.risk.State()
	reason := s.risk.ShutdownReason()

	if s.last.Date != "" && s.last.Date != st.Date {
		prev := s.last
		s.base = prev.Balance
		s.logger.Info().Str("date", prev.Date).Float64("daily_pnl", prev.DailyPnL).Msg("Day closed")
		if s.notifier != nil {
			s.notifier.Notify(models.Event{Kind: models.EventDailySummary, Summary: &prev, Timestamp: now})
		}
	}

	balance := s.base + st.CumulativePnL
	var unrealized, notional float64
	for _, p := range positions {
		price := p.CurrentPrice
		if price <= 0 {
			price = p.EntryPrice
		}
		unrealized += p.UnrealizedPnL(price)
		notional += p.EntryPrice * p.PositionSize
	}
	equity := balance + unrealized
	if equity > s.peak {
		s.peak = equity
	}

	sum := models.DailySummary{
		Date:              st.Date,
		Balance:           balance,
		Equity:            equity,
		DailyPnL:          st.CumulativePnL,
		Status:            status,
		ConsecutiveLosses: st.ConsecutiveLosses,
		DailyTradeCount:   st.TradesToday,
		ShutdownReason:    reason,
		LastUpdate:        now,
		PeakEquity:        s.peak,
	}
	if s.peak > 0 {
		sum.DrawdownPct = (s.peak - equity) / s.peak * 100
	}
	if margin := notional / s.leverage; margin > 0 && equity > 0 {
		sum.MarginUsedPct = margin / equity * 100
		sum.MarginRatioPct = equity / margin * 100
	}
	if reason != "" && status == models.StatusRunning {
		sum.Status = models.StatusHalted
	}

	if s.store != nil {
		if err := s.store.SaveDailySummary(sum); err != nil {
			s.logger.Error().Err(err).Msg("Failed to save daily summary")
		}
	}
	s.last = sum
	return sum
}

// Last returns the most recent snapshot
func (s *SummaryTracker) Last() models.DailySummary { return s.last }

// Stop writes a final snapshot with status stopped
func (s *SummaryTracker) Stop(positions []models.OpenPosition) models.DailySummary {
	sum := s.Update(positions, models.StatusStopped)
	s.logger.Info().Float64("equity", sum.Equity).Msg("Daily summary stopped")
	return sum
}
