package bot

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/market"
	"github.com/Alias1177/HydraX/internal/signal"
	"github.com/Alias1177/HydraX/internal/trading/execution"
	"github.com/Alias1177/HydraX/internal/trading/risk"
	"github.com/Alias1177/HydraX/models"
)

// Config drives the cycle
type Config struct {
	Symbols         []string
	EntryTimeframe  models.Timeframe
	MidTimeframe    models.Timeframe
	HigherTimeframe models.Timeframe
	CandleLimit     int
	Interval        time.Duration
	HeartbeatEvery  int // ticks between heartbeat log lines
}

// DefaultConfig trades BTC and tokenized gold on M5 with M15/H1 context
func DefaultConfig() Config {
	return Config{
		Symbols:         []string{"BTCUSDT", "XAUTUSDT"},
		EntryTimeframe:  models.M5,
		MidTimeframe:    models.M15,
		HigherTimeframe: models.H1,
		CandleLimit:     250,
		Interval:        5 * time.Second,
		HeartbeatEvery:  12,
	}
}

// CacheStore receives the per-symbol diagnostic caches
type CacheStore interface {
	SaveTrendCache(map[string]any) error
	SavePACache(map[string]any) error
}

// SignalGenerator turns the candle series of one symbol into a decision
type SignalGenerator interface {
	Generate(in signal.Input) signal.Result
}

// Bot runs one analysis and execution pass per interval
type Bot struct {
	cfg       Config
	exchange  models.Exchange
	candles   *market.Store
	generator SignalGenerator
	signals   *signal.Log
	risk      *risk.Engine
	executor  *execution.Executor
	summary   *SummaryTracker
	caches    CacheStore
	logger    zerolog.Logger

	ticks      int
	trendCache map[string]any
	paCache    map[string]any
}

// Deps bundles the collaborators of a Bot
type Deps struct {
	Exchange  models.Exchange
	Candles   *market.Store
	Generator SignalGenerator
	Signals   *signal.Log
	Risk      *risk.Engine
	Executor  *execution.Executor
	Summary   *SummaryTracker
	Caches    CacheStore
}

// New creates a bot, filling zero config fields with defaults
func New(cfg Config, deps Deps) *Bot {
	def := DefaultConfig()
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = def.Symbols
	}
	if cfg.EntryTimeframe == "" {
		cfg.EntryTimeframe = def.EntryTimeframe
	}
	if cfg.MidTimeframe == "" {
		cfg.MidTimeframe = def.MidTimeframe
	}
	if cfg.HigherTimeframe == "" {
		cfg.HigherTimeframe = def.HigherTimeframe
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = def.CandleLimit
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = def.HeartbeatEvery
	}
	if deps.Candles == nil {
		deps.Candles = market.NewStore(cfg.CandleLimit * 2)
	}
	if deps.Signals == nil {
		deps.Signals = signal.NewLog(signal.DefaultLogSize, nil)
	}

	return &Bot{
		cfg:        cfg,
		exchange:   deps.Exchange,
		candles:    deps.Candles,
		generator:  deps.Generator,
		signals:    deps.Signals,
		risk:       deps.Risk,
		executor:   deps.Executor,
		summary:    deps.Summary,
		caches:     deps.Caches,
		logger:     log.With().Str("component", "bot").Logger(),
		trendCache: make(map[string]any),
		paCache:    make(map[string]any),
	}
}

// Run ticks immediately and then every Interval until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().
		Strs("symbols", b.cfg.Symbols).
		Dur("interval", b.cfg.Interval).
		Msg("Bot started")

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		b.Tick(ctx)
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick processes every symbol once, then refreshes the caches and the summary
func (b *Bot) Tick(ctx context.Context) {
	b.ticks++
	for _, symbol := range b.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := b.processSymbol(ctx, symbol); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Str("symbol", symbol).Msg("Cycle failed")
		}
	}

	if b.caches != nil {
		if err := b.caches.SaveTrendCache(b.trendCache); err != nil {
			b.logger.Error().Err(err).Msg("Failed to save trend cache")
		}
		if err := b.caches.SavePACache(b.paCache); err != nil {
			b.logger.Error().Err(err).Msg("Failed to save PA cache")
		}
	}
	if b.summary != nil {
		b.summary.Update(b.executor.Positions(), models.StatusRunning)
	}

	if b.ticks%b.cfg.HeartbeatEvery == 0 {
		st := b.risk.State()
		b.logger.Info().
			Int("tick", b.ticks).
			Int("open_positions", len(b.executor.Positions())).
			Float64("daily_pnl", st.CumulativePnL).
			Int("trades_today", st.TradesToday).
			Msg("Heartbeat")
	}
}

func (b *Bot) processSymbol(ctx context.Context, symbol string) error {
	series := make(map[models.Timeframe][]models.Candle, 3)
	for _, tf := range []models.Timeframe{b.cfg.HigherTimeframe, b.cfg.MidTimeframe, b.cfg.EntryTimeframe} {
		fetched, err := b.exchange.FetchCandles(ctx, symbol, tf, b.cfg.CandleLimit)
		if err != nil {
			return err
		}
		b.candles.Append(symbol, tf, fetched)
		series[tf] = b.candles.Candles(symbol, tf)
		if len(series[tf]) == 0 {
			b.logger.Warn().Str("symbol", symbol).Str("timeframe", string(tf)).Msg("No candles, skipping symbol")
			return nil
		}
	}

	ticker, err := b.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return err
	}

	entry := series[b.cfg.EntryTimeframe]
	b.executor.Monitor(ctx, symbol, ticker.Last, entry)

	res := b.generator.Generate(signal.Input{
		Symbol:       symbol,
		Entry:        entry,
		Mid:          series[b.cfg.MidTimeframe],
		Higher:       series[b.cfg.HigherTimeframe],
		SpreadPoints: ticker.SpreadPoints(),
	})
	decision := res.Decision
	b.signals.Record(ctx, decision)
	if res.Trend != nil {
		b.trendCache[symbol] = res.Trend
	}
	if res.PriceAction != nil {
		b.paCache[symbol] = res.PriceAction
	}

	if !decision.Actionable() {
		return nil
	}
	if ok, reason := b.risk.CanTrade(); !ok {
		b.logger.Warn().Str("symbol", symbol).Str("reason", reason).Msg("Signal ignored, trading halted")
		return nil
	}
	if ok, _ := b.risk.SpreadOK(ticker.Bid, ticker.Ask); !ok {
		return nil
	}
	if b.hasPosition(symbol) {
		b.logger.Debug().Str("symbol", symbol).Msg("Position already open")
		return nil
	}

	if required, reason := b.executor.ProbeRequired(); required {
		b.logger.Info().Str("symbol", symbol).Str("reason", reason).Msg("Running safety probe")
		_, err := b.executor.RunSafetyProbe(ctx, symbol, decision.Direction, decision.EntryPrice)
		return err
	}

	if _, err := b.executor.Execute(ctx, decision); err != nil {
		if errors.Is(err, risk.ErrCircuitOpen) || errors.Is(err, execution.ErrZeroSize) {
			b.logger.Warn().Err(err).Str("symbol", symbol).Msg("Signal not executed")
			return nil
		}
		return err
	}
	return nil
}

func (b *Bot) hasPosition(symbol string) bool {
	for _, p := range b.executor.Positions() {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// Signals exposes the rolling decision log
func (b *Bot) Signals() *signal.Log { return b.signals }
