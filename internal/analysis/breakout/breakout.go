package breakout

import (
	"math"

	"github.com/Alias1177/HydraX/internal/indicators"
	"github.com/Alias1177/HydraX/models"
)

// Config holds the breakout thresholds
type Config struct {
	CompressionWindow int
	ATRThreshold      float64
	MinBodyRatio      float64
	MaxWickRatio      float64
	SpikeWindow       int // candles used for the current ATR
	SpikePeriod       int
	BaselinePeriod    int
}

// DefaultConfig returns window 20, ATR ratio 1.5, body 60%, wick 25%
func DefaultConfig() Config {
	return Config{
		CompressionWindow: 20,
		ATRThreshold:      1.5,
		MinBodyRatio:      0.6,
		MaxWickRatio:      0.25,
		SpikeWindow:       20,
		SpikePeriod:       14,
		BaselinePeriod:    50,
	}
}

// Compression describes the volatility contraction before the latest candle
type Compression struct {
	Compressed bool    `json:"compressed"`
	Candles    int     `json:"candle_count"`
	AvgRange   float64 `json:"avg_atr"`
}

// Spike compares recent ATR with the longer baseline
type Spike struct {
	Spike    bool    `json:"spike"`
	Current  float64 `json:"current_atr"`
	Baseline float64 `json:"avg_atr"`
	Ratio    float64 `json:"ratio"`
}

// BodyWick validates the breakout candle itself
type BodyWick struct {
	Valid     bool             `json:"valid"`
	BodyRatio float64          `json:"body_ratio"`
	WickRatio float64          `json:"wick_ratio"`
	Direction models.Direction `json:"direction"`
}

// Signal is the detector output
type Signal struct {
	Direction   models.Direction `json:"signal"`
	Strength    float64          `json:"strength"`
	Compression Compression      `json:"compression"`
	Spike       Spike            `json:"atr_spike"`
	BodyWick    BodyWick         `json:"body_wick"`
}

// Detector finds compression followed by a volatility expansion
type Detector struct {
	cfg Config
}

// NewDetector creates a breakout detector, zero fields take defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.CompressionWindow <= 0 {
		cfg.CompressionWindow = def.CompressionWindow
	}
	if cfg.ATRThreshold <= 0 {
		cfg.ATRThreshold = def.ATRThreshold
	}
	if cfg.MinBodyRatio <= 0 {
		cfg.MinBodyRatio = def.MinBodyRatio
	}
	if cfg.MaxWickRatio <= 0 {
		cfg.MaxWickRatio = def.MaxWickRatio
	}
	if cfg.SpikeWindow <= 0 {
		cfg.SpikeWindow = def.SpikeWindow
	}
	if cfg.SpikePeriod <= 0 {
		cfg.SpikePeriod = def.SpikePeriod
	}
	if cfg.BaselinePeriod <= 0 {
		cfg.BaselinePeriod = def.BaselinePeriod
	}
	return &Detector{cfg: cfg}
}

// trueRanges computes one range per candle; the first candle has no
// predecessor and is measured against its own close.
func trueRanges(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		prev := c
		if i > 0 {
			prev = candles[i-1]
		}
		out[i] = indicators.TrueRange(prev, c)
	}
	return out
}

// ATR is the mean of the last period ranges, counting the first candle's
// own range. Needs at least period candles.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	tr := trueRanges(candles)
	return indicators.Mean(tr[len(tr)-period:])
}

// DetectCompression checks that ranges of the window before the latest candle
// never increase from one candle to the next.
func (d *Detector) DetectCompression(candles []models.Candle) Compression {
	window := d.cfg.CompressionWindow
	if len(candles) < 2 {
		return Compression{}
	}

	ranges := trueRanges(candles[:len(candles)-1])
	if len(ranges) < window {
		return Compression{}
	}

	recent := ranges[len(ranges)-window:]
	decreasing := true
	for i := 0; i < len(recent)-1; i++ {
		if recent[i] < recent[i+1] {
			decreasing = false
			break
		}
	}

	avg, _ := indicators.Mean(recent)
	return Compression{Compressed: decreasing, Candles: window, AvgRange: avg}
}

// DetectSpike compares the ATR of the recent window with the long baseline
func (d *Detector) DetectSpike(candles []models.Candle) Spike {
	if len(candles) < d.cfg.BaselinePeriod {
		return Spike{}
	}

	window := d.cfg.SpikeWindow
	if window > len(candles) {
		window = len(candles)
	}
	current, okCur := ATR(candles[len(candles)-window:], d.cfg.SpikePeriod)
	baseline, okBase := ATR(candles, d.cfg.BaselinePeriod)
	if !okCur || !okBase {
		return Spike{}
	}

	var ratio float64
	if baseline > 0 {
		ratio = current / baseline
	}
	return Spike{
		Spike:    ratio > d.cfg.ATRThreshold,
		Current:  current,
		Baseline: baseline,
		Ratio:    ratio,
	}
}

// ValidateBodyWick requires a dominant body and a short wick on the side
// opposite to the candle direction
func (d *Detector) ValidateBodyWick(c models.Candle) BodyWick {
	full := indicators.Range(c)
	if full == 0 {
		return BodyWick{Direction: models.None}
	}

	bodyRatio := indicators.Body(c) / full

	var dir models.Direction
	var opposite float64
	if indicators.IsBullish(c) {
		dir = models.Long
		opposite = indicators.LowerWick(c) / full
	} else {
		dir = models.Short
		opposite = indicators.UpperWick(c) / full
	}

	return BodyWick{
		Valid:     bodyRatio >= d.cfg.MinBodyRatio && opposite <= d.cfg.MaxWickRatio,
		BodyRatio: bodyRatio,
		WickRatio: opposite,
		Direction: dir,
	}
}

// Detect fires only when compression, spike and body/wick all hold on the
// latest candle. Strength = min(1, spike ratio / threshold * body ratio).
func (d *Detector) Detect(candles []models.Candle) Signal {
	if len(candles) < d.cfg.CompressionWindow {
		return Signal{Direction: models.None}
	}

	sig := Signal{
		Direction:   models.None,
		Compression: d.DetectCompression(candles),
		Spike:       d.DetectSpike(candles),
		BodyWick:    d.ValidateBodyWick(candles[len(candles)-1]),
	}

	if !sig.Compression.Compressed || !sig.Spike.Spike || !sig.BodyWick.Valid {
		return sig
	}

	sig.Direction = sig.BodyWick.Direction
	sig.Strength = math.Min(1, sig.Spike.Ratio/d.cfg.ATRThreshold*sig.BodyWick.BodyRatio)
	return sig
}
