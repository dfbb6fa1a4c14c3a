package signal

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/analysis/breakout"
	"github.com/Alias1177/HydraX/internal/analysis/levels"
	"github.com/Alias1177/HydraX/internal/analysis/pattern"
	"github.com/Alias1177/HydraX/internal/analysis/sweep"
	"github.com/Alias1177/HydraX/internal/analysis/trend"
	"github.com/Alias1177/HydraX/internal/indicators"
	"github.com/Alias1177/HydraX/models"
)

// Config holds detector settings and orchestrator gates
type Config struct {
	Trend    trend.Config
	Levels   levels.Config
	Breakout breakout.Config
	Sweep    sweep.Config

	MinConfirmations int
	MinStrength      float64
	MaxSpreadPoints  float64
	TP1Multiple      float64
	TP2Multiple      float64
	ATRPeriod        int
	ContextEMAPeriod int
	StopLookback     int
	StopBufferPoints float64 // in points of 1/10000 of the latest close
}

// DefaultConfig mirrors the production defaults
func DefaultConfig() Config {
	return Config{
		Trend:            trend.DefaultConfig(),
		Levels:           levels.DefaultConfig(),
		Breakout:         breakout.DefaultConfig(),
		Sweep:            sweep.DefaultConfig(),
		MinConfirmations: 2,
		MinStrength:      0.5,
		MaxSpreadPoints:  50,
		TP1Multiple:      1.5,
		TP2Multiple:      2.5,
		ATRPeriod:        14,
		ContextEMAPeriod: 50,
		StopLookback:     20,
		StopBufferPoints: 20,
	}
}

// Input is one instrument's data for a cycle
type Input struct {
	Symbol       string
	Entry        []models.Candle // execution timeframe, e.g. M5
	Mid          []models.Candle // trend timeframe, e.g. M15
	Higher       []models.Candle // bias timeframe, e.g. H1
	SpreadPoints float64
}

// Result carries the decision plus detector diagnostics for caching
type Result struct {
	Decision    models.SignalDecision
	Trend       *trend.Confirmation
	Breakout    *breakout.Signal
	Sweep       *sweep.Result
	PriceAction *pattern.Result
	Zones       []models.Zone
}

// Generator merges all detectors into one decision per instrument.
// Zone caches are kept per symbol; instruments are evaluated sequentially.
type Generator struct {
	cfg      Config
	trend    *trend.Detector
	breakout *breakout.Detector
	sweep    *sweep.Detector
	scorer   *pattern.Scorer

	zones    map[string]*levels.Detector
	lastSeen map[string]time.Time

	now    func() time.Time
	logger zerolog.Logger
}

// NewGenerator creates the orchestrator
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = def.MinStrength
	}
	if cfg.MaxSpreadPoints <= 0 {
		cfg.MaxSpreadPoints = def.MaxSpreadPoints
	}
	if cfg.TP1Multiple <= 0 {
		cfg.TP1Multiple = def.TP1Multiple
	}
	if cfg.TP2Multiple <= 0 {
		cfg.TP2Multiple = def.TP2Multiple
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.ContextEMAPeriod <= 0 {
		cfg.ContextEMAPeriod = def.ContextEMAPeriod
	}
	if cfg.StopLookback <= 0 {
		cfg.StopLookback = def.StopLookback
	}
	if cfg.StopBufferPoints <= 0 {
		cfg.StopBufferPoints = def.StopBufferPoints
	}

	return &Generator{
		cfg:      cfg,
		trend:    trend.NewDetector(cfg.Trend),
		breakout: breakout.NewDetector(cfg.Breakout),
		sweep:    sweep.NewDetector(cfg.Sweep),
		scorer:   pattern.NewScorer(cfg.MinConfirmations),
		zones:    make(map[string]*levels.Detector),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		logger:   log.With().Str("component", "signal_generator").Logger(),
	}
}

// Generate evaluates one instrument. It never fails: missing data and gate
// rejections come back as a NONE decision with a skip reason.
func (g *Generator) Generate(in Input) Result {
	decision := models.SignalDecision{
		Symbol:          in.Symbol,
		Direction:       models.None,
		ComponentScores: map[string]any{},
		Timestamp:       g.now().UTC(),
	}

	if len(in.Entry) == 0 || len(in.Mid) == 0 || len(in.Higher) == 0 {
		decision.SkipReason = models.SkipInsufficientData
		g.logger.Debug().Str("symbol", in.Symbol).Msg("Skipping: missing candles")
		return Result{Decision: decision}
	}

	latest := in.Entry[len(in.Entry)-1]
	decision.EntryPrice = indicators.Midpoint(latest)

	if in.SpreadPoints > g.cfg.MaxSpreadPoints {
		decision.SkipReason = models.SkipSpreadTooWide
		g.logger.Debug().
			Str("symbol", in.Symbol).
			Float64("spread_points", in.SpreadPoints).
			Msg("Skipping: spread too wide")
		return Result{Decision: decision}
	}

	trendRes := g.trend.Confirm(in.Mid, in.Higher)
	zones := g.zonesFor(in.Symbol, in.Entry)
	breakoutRes := g.breakout.Detect(in.Entry)
	sweepRes := g.sweep.Detect(in.Entry, zones)
	ema := indicators.EMASeries(indicators.Closes(in.Entry), g.cfg.ContextEMAPeriod)
	paRes := g.scorer.Score(in.Entry, pattern.Context{Zones: zones, EMA: ema})

	trendScore := 0.3
	if trendRes.Confirmed {
		trendScore = 0.7
	}
	decision.ComponentScores = map[string]any{
		"trend_strength":  trendScore,
		"breakout_score":  breakoutRes.Strength,
		"sweep_score":     sweepRes.Score,
		"pa_score":        paRes.Score,
		"pa_applicable":   paRes.Applicable,
		"trend_direction": string(trendRes.MidTrend),
		"h1_bias":         string(trendRes.HigherBias),
	}
	decision.ConfirmationCount = paRes.Count

	result := Result{
		Trend:       &trendRes,
		Breakout:    &breakoutRes,
		Sweep:       &sweepRes,
		PriceAction: &paRes,
		Zones:       zones,
	}

	if breakoutRes.Direction == models.None {
		decision.SkipReason = models.SkipNoBreakout
		result.Decision = decision
		return result
	}

	strength, _ := indicators.Mean([]float64{trendScore, breakoutRes.Strength, sweepRes.Score, paRes.Score})
	strength = math.Max(0, math.Min(1, strength))
	direction := breakoutRes.Direction
	decision.StopLoss, decision.TP1, decision.TP2 = g.targets(in.Entry, direction, decision.EntryPrice)
	decision.Strength = strength

	if strength < g.cfg.MinStrength {
		decision.SkipReason = models.SkipStrengthTooLow
		result.Decision = decision
		g.logger.Debug().
			Str("symbol", in.Symbol).
			Str("breakout", string(direction)).
			Float64("strength", strength).
			Msg("Skipping: strength too low")
		return result
	}

	decision.Direction = direction
	result.Decision = decision

	g.logger.Info().
		Str("symbol", in.Symbol).
		Str("direction", string(direction)).
		Float64("entry", decision.EntryPrice).
		Float64("strength", strength).
		Int("confirmations", decision.ConfirmationCount).
		Msg("Signal generated")
	return result
}

// targets places the stop beyond the recent extreme plus a buffer and the
// take profits at ATR multiples from entry
func (g *Generator) targets(candles []models.Candle, dir models.Direction, entry float64) (sl, tp1, tp2 float64) {
	latest := candles[len(candles)-1]

	atr, ok := breakout.ATR(candles, g.cfg.ATRPeriod)
	if !ok {
		atr = indicators.Range(latest)
	}

	recent := candles
	if len(recent) > g.cfg.StopLookback {
		recent = recent[len(recent)-g.cfg.StopLookback:]
	}
	buffer := g.cfg.StopBufferPoints * latest.Close / 10000

	if dir == models.Long {
		low := recent[0].Low
		for _, c := range recent[1:] {
			low = math.Min(low, c.Low)
		}
		return low - buffer, entry + atr*g.cfg.TP1Multiple, entry + atr*g.cfg.TP2Multiple
	}

	high := recent[0].High
	for _, c := range recent[1:] {
		high = math.Max(high, c.High)
	}
	return high + buffer, entry - atr*g.cfg.TP1Multiple, entry - atr*g.cfg.TP2Multiple
}

// zonesFor counts candles newer than the last evaluation towards the
// symbol's rebuild threshold
func (g *Generator) zonesFor(symbol string, candles []models.Candle) []models.Zone {
	det, ok := g.zones[symbol]
	if !ok {
		det = levels.NewDetector(g.cfg.Levels)
		g.zones[symbol] = det
	}

	last := g.lastSeen[symbol]
	fresh := 0
	for i := len(candles) - 1; i >= 0 && candles[i].Timestamp.After(last); i-- {
		fresh++
	}
	g.lastSeen[symbol] = candles[len(candles)-1].Timestamp

	return det.Update(candles, fresh)
}
