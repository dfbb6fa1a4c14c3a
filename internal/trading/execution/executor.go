package execution

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/retry"
	"github.com/Alias1177/HydraX/internal/trading/risk"
	"github.com/Alias1177/HydraX/models"
)

var (
	// ErrOrderFailed means no order was placed after every attempt
	ErrOrderFailed = errors.New("order submission failed")
	// ErrNotActionable is returned for decisions that did not pass the signal gates
	ErrNotActionable = errors.New("signal not actionable")
	// ErrZeroSize is returned when a position cannot be sized
	ErrZeroSize = errors.New("position size is zero")
)

// Store is the durable state used by the executor
type Store interface {
	SaveOpenPositions([]models.OpenPosition) error
	LoadOpenPositions() []models.OpenPosition
	LoadTradeHistory() ([]models.TradeRecord, error)
	AppendTrades(...models.TradeRecord) error
	MarkerTime() (time.Time, bool)
	WriteMarker(time.Time) error
}

// Journal mirrors closed trades to an external store
type Journal interface {
	Record(ctx context.Context, rec models.TradeRecord) error
}

// Config holds execution settings
type Config struct {
	Camouflage        Camouflage
	Retry             retry.Policy
	TrailingEMAPeriod int
	Probe             ProbeConfig
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Camouflage:        DefaultCamouflage(),
		Retry:             retry.DefaultPolicy(),
		TrailingEMAPeriod: 21,
		Probe:             DefaultProbeConfig(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Executor submits orders and manages the resulting positions. Execute,
// Monitor and the probe are driven from the single scheduler goroutine;
// the mutex only guards readers such as Positions.
type Executor struct {
	cfg      Config
	exchange models.Exchange
	risk     *risk.Engine
	store    Store
	notifier models.Notifier
	journal  Journal

	rnd       *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
	retryOpts []retry.Option
	now       func() time.Time
	logger    zerolog.Logger

	mu        sync.Mutex
	positions []models.OpenPosition
	unsaved   []models.TradeRecord
}

// Option configures an Executor
type Option func(*Executor)

// WithRand sets the randomness source for camouflage, partial plans and retry jitter
func WithRand(r *rand.Rand) Option { return func(e *Executor) { e.rnd = r } }

// WithSleeper replaces the human-like delay wait
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithRetryTimer replaces the timer used between retry attempts
func WithRetryTimer(t backoff.Timer) Option {
	return func(e *Executor) { e.retryOpts = append(e.retryOpts, retry.WithTimer(t)) }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithNotifier sets the lifecycle event sink
func WithNotifier(n models.Notifier) Option { return func(e *Executor) { e.notifier = n } }

// WithJournal mirrors every closed trade
func WithJournal(j Journal) Option { return func(e *Executor) { e.journal = j } }

// NewExecutor creates an executor and restores open positions from store
func NewExecutor(cfg Config, exchange models.Exchange, riskEngine *risk.Engine, store Store, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.TrailingEMAPeriod <= 0 {
		cfg.TrailingEMAPeriod = def.TrailingEMAPeriod
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.Camouflage == (Camouflage{}) {
		cfg.Camouflage = def.Camouflage
	}
	if cfg.Probe == (ProbeConfig{}) {
		cfg.Probe = def.Probe
	}

	e := &Executor{
		cfg:      cfg,
		exchange: exchange,
		risk:     riskEngine,
		store:    store,
		sleep:    sleepContext,
		now:      time.Now,
		logger:   log.With().Str("component", "executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if store != nil {
		e.positions = store.LoadOpenPositions()
		if len(e.positions) > 0 {
			e.logger.Info().Int("positions", len(e.positions)).Msg("Restored open positions")
		}
	}
	return e
}

// Positions returns a copy of the open positions
func (e *Executor) Positions() []models.OpenPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.OpenPosition, len(e.positions))
	copy(out, e.positions)
	return out
}

// Submission is the outcome of one order submission
type Submission struct {
	Request  models.OrderRequest // after camouflage
	Order    *models.Order       // nil when no order was placed
	Attempts int
}

// Submit randomizes req, waits a human-like delay and sends it with retries.
// When every attempt fails the returned error wraps ErrOrderFailed and
// Submission.Order is nil.
func (e *Executor) Submit(ctx context.Context, req models.OrderRequest) (Submission, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	if req.Type == "" {
		req.Type = models.OrderLimit
	}
	req = e.cfg.Camouflage.Apply(e.rnd, req)
	sub := Submission{Request: req}

	delay := e.cfg.Camouflage.HumanDelay(e.rnd)
	e.logger.Debug().Dur("delay", delay).Str("symbol", req.Symbol).Msg("Human-like delay before submission")
	if err := e.sleep(ctx, delay); err != nil {
		return sub, err
	}

	return e.send(ctx, req, sub)
}

// send places req with the retry policy, no camouflage
func (e *Executor) send(ctx context.Context, req models.OrderRequest, sub Submission) (Submission, error) {
	opts := append([]retry.Option{
		retry.WithRand(e.rnd),
		retry.WithNotify(func(err error, wait time.Duration) {
			e.logger.Warn().Err(err).Dur("retry_in", wait).Str("symbol", req.Symbol).Msg("Order attempt failed")
		}),
	}, e.retryOpts...)

	order, attempts, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context, attempt int) (*models.Order, error) {
		e.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", e.cfg.Retry.MaxAttempts).
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Float64("amount", req.Amount).
			Float64("price", req.Price).
			Msg("Submitting order")
		o, err := e.exchange.CreateOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, errors.New("exchange returned no order")
		}
		return o, nil
	}, opts...)
	sub.Attempts = attempts

	if err != nil {
		if ctx.Err() != nil {
			return sub, err
		}
		e.logger.Error().Err(err).Int("attempts", attempts).Str("symbol", req.Symbol).Msg("Order submission failed")
		return sub, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	sub.Order = order
	e.logger.Info().Str("order_id", order.ID).Str("symbol", req.Symbol).Int("attempts", attempts).Msg("Order submitted")
	return sub, nil
}

// Execute opens a position for an actionable decision after the risk gate.
// A nil position with ErrOrderFailed is the normal "no order" outcome.
func (e *Executor) Execute(ctx context.Context, d models.SignalDecision) (*models.OpenPosition, error) {
	if !d.Actionable() {
		return nil, fmt.Errorf("%w: %s", ErrNotActionable, d.SkipReason)
	}
	if err := e.risk.Check(); err != nil {
		return nil, err
	}
	size := e.risk.PositionSize(d.EntryPrice, d.StopLoss)
	if size <= 0 {
		return nil, ErrZeroSize
	}
	return e.open(ctx, d.Symbol, d.Direction, d.EntryPrice, d.StopLoss, d.TP1, d.TP2, size, e.risk.Config().RiskPercent)
}

func (e *Executor) open(ctx context.Context, symbol string, dir models.Direction, entry, sl, tp1, tp2, size, riskPct float64) (*models.OpenPosition, error) {
	sub, err := e.Submit(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     dir,
		Type:     models.OrderLimit,
		Amount:   size,
		Price:    entry,
		StopLoss: sl,
		TP1:      tp1,
		TP2:      tp2,
	})
	if err != nil {
		if errors.Is(err, ErrOrderFailed) {
			e.notify(models.Event{Kind: models.EventError, Symbol: symbol, Direction: dir, Reason: err.Error()})
		}
		return nil, err
	}

	req, order := sub.Request, sub.Order
	fill := order.FillPrice
	if fill <= 0 {
		fill = order.Price
	}
	if fill <= 0 {
		fill = entry
	}
	if order.Amount > 0 {
		req.Amount = order.Amount
	}

	if t, terr := e.exchange.FetchTicker(ctx, symbol); terr == nil {
		if ok, reason := e.risk.ValidateFill(t.Bid, t.Ask, entry, fill); !ok {
			e.logger.Warn().Str("symbol", symbol).Str("reason", reason).Msg("Fill flagged by order validation")
		}
	} else {
		e.logger.Warn().Err(terr).Str("symbol", symbol).Msg("Ticker unavailable for fill validation")
		e.risk.CheckSlippage(entry, fill)
	}

	plan := PlanPartialClose(e.rnd, req.Amount)
	pos := models.OpenPosition{
		ID:           order.ID,
		Symbol:       symbol,
		Direction:    dir,
		EntryPrice:   fill,
		CurrentPrice: fill,
		PositionSize: req.Amount,
		SL:           req.StopLoss,
		TP:           req.TP2,
		TP1:          req.TP1,
		TP2:          req.TP2,
		EntryTime:    e.now().UTC(),
		RiskPct:      riskPct,
		InitialSize:  req.Amount,
		TP1Size:      plan.TP1Size,
		TP2Size:      plan.TP2Size,
	}

	e.mu.Lock()
	e.positions = append(e.positions, pos)
	e.savePositionsLocked()
	e.mu.Unlock()

	e.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(dir)).
		Float64("entry", fill).
		Float64("size", pos.PositionSize).
		Float64("tp1_pct", plan.TP1Pct).
		Float64("tp2_pct", plan.TP2Pct).
		Float64("runner_pct", plan.RunnerPct).
		Msg("Position opened")

	e.notify(models.Event{
		Kind:      models.EventEntry,
		Symbol:    symbol,
		Direction: dir,
		Price:     fill,
		StopLoss:  pos.SL,
		TP1:       pos.TP1,
		TP2:       pos.TP2,
		Size:      pos.PositionSize,
		RiskPct:   riskPct,
	})
	return &pos, nil
}

// savePositionsLocked rewrites open_positions.json. Caller holds mu.
func (e *Executor) savePositionsLocked() {
	if e.store == nil {
		return
	}
	out := make([]models.OpenPosition, len(e.positions))
	copy(out, e.positions)
	if err := e.store.SaveOpenPositions(out); err != nil {
		e.logger.Error().Err(err).Msg("Failed to save open positions")
	}
}

// recordTrade books a realized trade in the risk engine, history and journal
func (e *Executor) recordTrade(ctx context.Context, rec models.TradeRecord) {
	e.risk.RecordTrade(rec.PnL)

	if e.store != nil {
		e.mu.Lock()
		pending := append(e.unsaved, rec)
		if err := e.store.AppendTrades(pending...); err != nil {
			e.logger.Error().Err(err).Int("pending", len(pending)).Msg("Failed to append trade history")
			e.unsaved = pending
		} else {
			e.unsaved = nil
		}
		e.mu.Unlock()
	}

	if e.journal != nil {
		if err := e.journal.Record(ctx, rec); err != nil {
			e.logger.Warn().Err(err).Str("symbol", rec.Symbol).Msg("Trade journal write failed")
		}
	}
}

func (e *Executor) notify(ev models.Event) {
	if e.notifier == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now().UTC()
	}
	e.notifier.Notify(ev)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
