package backtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/exchange"
	"github.com/Alias1177/HydraX/internal/signal"
	"github.com/Alias1177/HydraX/internal/trading/execution"
	"github.com/Alias1177/HydraX/internal/trading/risk"
	"github.com/Alias1177/HydraX/models"
)

// maxOutputSize is the largest history the data provider returns per request
const maxOutputSize = 5000

// ErrInsufficientHistory is returned when there are not enough entry candles to warm up
var ErrInsufficientHistory = errors.New("insufficient historical data")

// Config describes one replay
type Config struct {
	EntryTimeframe  models.Timeframe
	MidTimeframe    models.Timeframe
	HigherTimeframe models.Timeframe
	Days            int // replayed period
	CandleLimit     int // window handed to the generator, as in live trading
	Warmup          int // entry candles skipped before the first decision
	Seed            int64
}

// DefaultConfig replays five days of M5 with M15/H1 context
func DefaultConfig() Config {
	return Config{
		EntryTimeframe:  models.M5,
		MidTimeframe:    models.M15,
		HigherTimeframe: models.H1,
		Days:            5,
		CandleLimit:     250,
		Warmup:          100,
		Seed:            1,
	}
}

// Result is the outcome of a replay
type Result struct {
	Symbol    string
	Steps     int
	Signals   int
	Trades    []models.TradeRecord
	OpenAtEnd []models.OpenPosition
}

// Engine replays history through the live signal, risk and execution stack
// against a paper exchange
type Engine struct {
	source    models.CandleSource
	cfg       Config
	signalCfg signal.Config
	riskCfg   risk.Config
	execCfg   execution.Config
	logger    zerolog.Logger
}

// NewEngine creates a replay engine; zero config fields take defaults
func NewEngine(source models.CandleSource, cfg Config, signalCfg signal.Config, riskCfg risk.Config, execCfg execution.Config) *Engine {
	def := DefaultConfig()
	if cfg.EntryTimeframe == "" {
		cfg.EntryTimeframe = def.EntryTimeframe
	}
	if cfg.MidTimeframe == "" {
		cfg.MidTimeframe = def.MidTimeframe
	}
	if cfg.HigherTimeframe == "" {
		cfg.HigherTimeframe = def.HigherTimeframe
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = def.CandleLimit
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = def.Warmup
	}
	return &Engine{
		source:    source,
		cfg:       cfg,
		signalCfg: signalCfg,
		riskCfg:   riskCfg,
		execCfg:   execCfg,
		logger:    log.With().Str("component", "backtest").Logger(),
	}
}

// Run replays the configured period for one symbol
func (e *Engine) Run(ctx context.Context, symbol string) (Result, error) {
	res := Result{Symbol: symbol}
	// entry last so the paper quote follows the entry close
	tfs := []models.Timeframe{e.cfg.HigherTimeframe, e.cfg.MidTimeframe, e.cfg.EntryTimeframe}

	src := newReplaySource(e.cfg.EntryTimeframe.Duration())
	var entry []models.Candle
	for _, tf := range tfs {
		limit := min(models.CandlesPerDay(tf, e.cfg.Days)+e.cfg.CandleLimit, maxOutputSize)
		candles, err := e.source.FetchCandles(ctx, symbol, tf, limit)
		if err != nil {
			return res, fmt.Errorf("failed to fetch %s history: %w", tf, err)
		}
		src.load(symbol, tf, candles)
		if tf == e.cfg.EntryTimeframe {
			entry = candles
		}
	}
	if len(entry) <= e.cfg.Warmup {
		return res, fmt.Errorf("%w: got %d %s candles, need more than %d", ErrInsufficientHistory, len(entry), e.cfg.EntryTimeframe, e.cfg.Warmup)
	}

	var now time.Time
	clock := func() time.Time { return now }
	store := &memoryStore{}
	paper := exchange.NewPaper(src, exchange.Config{QuoteTimeframe: e.cfg.EntryTimeframe})
	riskEngine := risk.NewEngine(e.riskCfg, nil, risk.WithClock(clock))
	executor := execution.NewExecutor(e.execCfg, paper, riskEngine, store,
		execution.WithRand(rand.New(rand.NewSource(e.cfg.Seed))),
		execution.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		execution.WithRetryTimer(&immediateTimer{}),
		execution.WithClock(clock),
	)
	generator := signal.NewGenerator(e.signalCfg)

	step := e.cfg.EntryTimeframe.Duration()
	e.logger.Info().
		Str("symbol", symbol).
		Int("candles", len(entry)).
		Time("from", entry[e.cfg.Warmup].Timestamp).
		Time("to", entry[len(entry)-1].Timestamp).
		Msg("Backtest started")

	for i := e.cfg.Warmup; i < len(entry); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		src.seek(entry[i].Timestamp)
		now = entry[i].Timestamp.Add(step)
		res.Steps++

		series := make(map[models.Timeframe][]models.Candle, len(tfs))
		for _, tf := range tfs {
			candles, err := paper.FetchCandles(ctx, symbol, tf, e.cfg.CandleLimit)
			if err != nil {
				return res, err
			}
			series[tf] = candles
		}
		ticker, err := paper.FetchTicker(ctx, symbol)
		if err != nil {
			return res, err
		}

		executor.Monitor(ctx, symbol, ticker.Last, series[e.cfg.EntryTimeframe])

		out := generator.Generate(signal.Input{
			Symbol:       symbol,
			Entry:        series[e.cfg.EntryTimeframe],
			Mid:          series[e.cfg.MidTimeframe],
			Higher:       series[e.cfg.HigherTimeframe],
			SpreadPoints: ticker.SpreadPoints(),
		})
		if !out.Decision.Actionable() {
			continue
		}
		res.Signals++
		if ok, _ := riskEngine.CanTrade(); !ok || len(executor.Positions()) > 0 {
			continue
		}
		if _, err := executor.Execute(ctx, out.Decision); err != nil {
			e.logger.Debug().Err(err).Time("at", now).Msg("Replay signal not executed")
		}
	}

	res.Trades, _ = store.LoadTradeHistory()
	res.OpenAtEnd = executor.Positions()
	e.logger.Info().
		Str("symbol", symbol).
		Int("steps", res.Steps).
		Int("signals", res.Signals).
		Int("trades", len(res.Trades)).
		Int("open_at_end", len(res.OpenAtEnd)).
		Msg("Backtest finished")
	return res, nil
}
