package trend

import (
	"github.com/Alias1177/HydraX/internal/indicators"
	"github.com/Alias1177/HydraX/models"
)

// Bias is the classification of one timeframe
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Ranging Bias = "ranging"
	Neutral Bias = "neutral"
)

// Config holds the moving average periods and the ranging band
type Config struct {
	FastPeriod int
	SlowPeriod int
	Tolerance  float64 // fraction of the slow EMA
}

// DefaultConfig returns EMA 50/200 with a 0.5% band
func DefaultConfig() Config {
	return Config{FastPeriod: 50, SlowPeriod: 200, Tolerance: 0.005}
}

// MidTrend is the EMA crossover reading on the mid timeframe
type MidTrend struct {
	Trend   Bias    `json:"trend"`
	FastEMA float64 `json:"ema_fast,omitempty"`
	SlowEMA float64 `json:"ema_slow,omitempty"`
	Defined bool    `json:"defined"`
}

// HigherBias is the body position reading of the latest higher timeframe candle
type HigherBias struct {
	Bias         Bias    `json:"bias"`
	BodyPosition float64 `json:"body_position"`
}

// Confirmation combines both readings
type Confirmation struct {
	MidTrend     Bias    `json:"m15_trend"`
	HigherBias   Bias    `json:"h1_bias"`
	Confirmed    bool    `json:"confirmed"`
	FastEMA      float64 `json:"ema50,omitempty"`
	SlowEMA      float64 `json:"ema200,omitempty"`
	BodyPosition float64 `json:"h1_body_position"`
}

// Detector classifies trend from two timeframes
type Detector struct {
	cfg Config
}

// NewDetector creates a trend detector, zero fields take defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = def.FastPeriod
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = def.SlowPeriod
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &Detector{cfg: cfg}
}

// Analyze classifies the mid timeframe. Too little history reads as ranging.
func (d *Detector) Analyze(candles []models.Candle) MidTrend {
	if len(candles) < d.cfg.SlowPeriod {
		return MidTrend{Trend: Ranging}
	}

	closes := indicators.Closes(candles)
	fast, okFast := indicators.EMA(closes, d.cfg.FastPeriod)
	slow, okSlow := indicators.EMA(closes, d.cfg.SlowPeriod)
	if !okFast || !okSlow {
		return MidTrend{Trend: Ranging}
	}

	band := slow * d.cfg.Tolerance
	result := MidTrend{FastEMA: fast, SlowEMA: slow, Defined: true, Trend: Ranging}
	switch {
	case fast > slow+band:
		result.Trend = Bullish
	case fast < slow-band:
		result.Trend = Bearish
	}
	return result
}

// HigherTimeframeBias places the body midpoint inside the candle range.
// Above half is bullish, below half bearish, exactly half (or a flat candle) neutral.
func HigherTimeframeBias(c models.Candle) HigherBias {
	full := c.High - c.Low
	if full == 0 {
		return HigherBias{Bias: Neutral, BodyPosition: 0.5}
	}

	mid := (c.Open + c.Close) / 2
	pos := (mid - c.Low) / full

	bias := Neutral
	switch {
	case pos > 0.5:
		bias = Bullish
	case pos < 0.5:
		bias = Bearish
	}
	return HigherBias{Bias: bias, BodyPosition: pos}
}

// Confirm runs both readings. Trend is confirmed when the timeframes agree or
// when the mid timeframe is ranging.
func (d *Detector) Confirm(mid []models.Candle, higher []models.Candle) Confirmation {
	m := d.Analyze(mid)

	h := HigherBias{Bias: Neutral, BodyPosition: 0.5}
	if len(higher) > 0 {
		h = HigherTimeframeBias(higher[len(higher)-1])
	}

	confirmed := false
	switch {
	case m.Trend == Ranging:
		confirmed = true
	case m.Trend == Bullish && h.Bias == Bullish:
		confirmed = true
	case m.Trend == Bearish && h.Bias == Bearish:
		confirmed = true
	}

	return Confirmation{
		MidTrend:     m.Trend,
		HigherBias:   h.Bias,
		Confirmed:    confirmed,
		FastEMA:      m.FastEMA,
		SlowEMA:      m.SlowEMA,
		BodyPosition: h.BodyPosition,
	}
}
