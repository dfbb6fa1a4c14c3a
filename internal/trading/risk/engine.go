package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

// ErrCircuitOpen is returned when a breaker blocks trading
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds account and limit settings
type Config struct {
	AccountBalance       float64
	RiskPercent          float64
	MaxSpreadPoints      float64
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int
	MinLotSize           float64
	LotPrecision         int32
	MaxSlippagePct       float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		AccountBalance:       10000,
		RiskPercent:          1.75,
		MaxSpreadPoints:      50,
		MaxDailyLossPct:      5,
		MaxConsecutiveLosses: 2,
		MinLotSize:           0.001,
		LotPrecision:         8,
		MaxSlippagePct:       0.05,
	}
}

// StateStore persists the daily counters
type StateStore interface {
	LoadRiskState() (models.RiskState, bool)
	SaveRiskState(models.RiskState) error
}

// Engine owns the risk state for the process
type Engine struct {
	cfg    Config
	store  StateStore
	mu     sync.Mutex
	state  models.RiskState
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used for date rollover
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine restores today's counters from the store. A stored state from
// another date starts a fresh day but keeps the consecutive loss count.
func NewEngine(cfg Config, store StateStore, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.AccountBalance <= 0 {
		cfg.AccountBalance = def.AccountBalance
	}
	if cfg.RiskPercent <= 0 {
		cfg.RiskPercent = def.RiskPercent
	}
	if cfg.MaxSpreadPoints <= 0 {
		cfg.MaxSpreadPoints = def.MaxSpreadPoints
	}
	if cfg.MaxDailyLossPct <= 0 {
		cfg.MaxDailyLossPct = def.MaxDailyLossPct
	}
	if cfg.MaxConsecutiveLosses <= 0 {
		cfg.MaxConsecutiveLosses = def.MaxConsecutiveLosses
	}
	if cfg.MinLotSize <= 0 {
		cfg.MinLotSize = def.MinLotSize
	}
	if cfg.LotPrecision <= 0 {
		cfg.LotPrecision = def.LotPrecision
	}
	if cfg.MaxSlippagePct <= 0 {
		cfg.MaxSlippagePct = def.MaxSlippagePct
	}

	e := &Engine{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		logger: log.With().Str("component", "risk_engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	today := models.UTCDate(e.now())
	e.state = models.RiskState{Date: today}
	if store != nil {
		if st, ok := store.LoadRiskState(); ok {
			if st.Date == today {
				e.state = st
			} else {
				e.state.ConsecutiveLosses = st.ConsecutiveLosses
			}
		}
	}
	e.persist()

	e.logger.Info().
		Float64("risk_percent", cfg.RiskPercent).
		Float64("daily_pnl", e.state.CumulativePnL).
		Int("consecutive_losses", e.state.ConsecutiveLosses).
		Msg("Risk engine initialized")
	return e
}

// Config returns the effective settings
func (e *Engine) Config() Config { return e.cfg }

// Balance returns the configured account balance
func (e *Engine) Balance() float64 { return e.cfg.AccountBalance }

// DailyLossLimit is the negative PnL at which trading stops for the day
func (e *Engine) DailyLossLimit() float64 {
	return -e.cfg.AccountBalance * e.cfg.MaxDailyLossPct / 100
}

// rollover resets the day counters when the UTC date changed. Caller holds mu.
func (e *Engine) rollover() {
	today := models.UTCDate(e.now())
	if e.state.Date == today {
		return
	}
	e.logger.Info().Str("from", e.state.Date).Str("to", today).Msg("Daily risk counters reset")
	e.state = models.RiskState{Date: today, ConsecutiveLosses: e.state.ConsecutiveLosses}
	e.persist()
}

// persist saves the state; failures are logged. Caller holds mu.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRiskState(e.state); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist risk state")
	}
}

// reason describes the first tripped breaker. Caller holds mu.
func (e *Engine) reason() string {
	if limit := e.DailyLossLimit(); e.state.CumulativePnL <= limit {
		return fmt.Sprintf("daily loss limit exceeded: %.2f <= %.2f", e.state.CumulativePnL, limit)
	}
	if e.state.ConsecutiveLosses >= e.cfg.MaxConsecutiveLosses {
		return fmt.Sprintf("consecutive loss limit reached: %d >= %d", e.state.ConsecutiveLosses, e.cfg.MaxConsecutiveLosses)
	}
	return ""
}

// CanTrade reports whether both breakers are closed
func (e *Engine) CanTrade() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollover()
	r := e.reason()
	return r == "", r
}

// Check is CanTrade as an error wrapping ErrCircuitOpen
func (e *Engine) Check() error {
	if ok, reason := e.CanTrade(); !ok {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, reason)
	}
	return nil
}

// ShutdownReason returns the active breaker description, empty when trading is allowed
func (e *Engine) ShutdownReason() string {
	_, r := e.CanTrade()
	return r
}

// RecordTrade books a realized PnL. Wins reset the consecutive loss count,
// losses increment it; breakeven trades only count towards trades today.
func (e *Engine) RecordTrade(pnl float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollover()
	before := e.reason()

	e.state.CumulativePnL += pnl
	e.state.TradesToday++
	switch {
	case pnl > 0:
		e.state.WinningTrades++
		if e.state.ConsecutiveLosses > 0 {
			e.logger.Info().Msg("Consecutive loss counter reset on winning trade")
		}
		e.state.ConsecutiveLosses = 0
	case pnl < 0:
		e.state.LosingTrades++
		e.state.ConsecutiveLosses++
	}
	e.persist()

	e.logger.Info().
		Float64("pnl", pnl).
		Float64("daily_pnl", e.state.CumulativePnL).
		Int("trades_today", e.state.TradesToday).
		Int("consecutive_losses", e.state.ConsecutiveLosses).
		Msg("Trade recorded")

	if after := e.reason(); after != "" && before == "" {
		e.logger.Error().Str("reason", after).Msg("Circuit breaker tripped")
	}
}

// Reset is the operator reset for the consecutive loss breaker. The daily
// loss accumulation still only clears on date rollover.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ConsecutiveLosses = 0
	e.persist()
	e.logger.Warn().Msg("Risk breakers reset by operator")
}

// State returns a copy of the current counters
func (e *Engine) State() models.RiskState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollover()
	return e.state
}
