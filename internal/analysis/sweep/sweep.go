package sweep

import (
	"math"

	"github.com/Alias1177/HydraX/models"
)

// Side of the wick that touched a zone
type Side string

const (
	Up   Side = "up"   // high touched the zone
	Down Side = "down" // low touched the zone
	None Side = "none"
)

// Config holds sweep thresholds
type Config struct {
	Tolerance       float64 // fraction of zone price
	MinClosureRatio float64
	ProximityScale  float64 // touch distance at which the touch score hits 0, as a fraction of zone price
}

// DefaultConfig returns tolerance 0.1%, closure ratio 0.5, proximity scale 1%
func DefaultConfig() Config {
	return Config{Tolerance: 0.001, MinClosureRatio: 0.5, ProximityScale: 0.01}
}

// Result is the best sweep found across all zones
type Result struct {
	Detected     bool    `json:"sweep_detected"`
	Side         Side    `json:"direction"`
	Score        float64 `json:"score"`
	TouchedLevel float64 `json:"touched_level,omitempty"`
	ZoneStrength float64 `json:"zone_strength,omitempty"`
}

// Detector scores wick-touch-and-reject patterns against known zones
type Detector struct {
	cfg Config
}

// NewDetector creates a sweep detector, zero fields take defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MinClosureRatio <= 0 {
		cfg.MinClosureRatio = def.MinClosureRatio
	}
	if cfg.ProximityScale <= 0 {
		cfg.ProximityScale = def.ProximityScale
	}
	return &Detector{cfg: cfg}
}

// touch checks the high first, then the low
func (d *Detector) touch(c models.Candle, zonePrice float64) (Side, float64, bool) {
	tol := zonePrice * d.cfg.Tolerance
	if c.High >= zonePrice-tol && c.High <= zonePrice+tol {
		return Up, math.Abs(c.High - zonePrice), true
	}
	if c.Low >= zonePrice-tol && c.Low <= zonePrice+tol {
		return Down, math.Abs(c.Low - zonePrice), true
	}
	return None, 0, false
}

// closure reports whether cur closed back inside prev's range and where
func closure(cur, prev models.Candle) (float64, bool) {
	if cur.Close < prev.Low || cur.Close > prev.High {
		return 0, false
	}
	span := prev.High - prev.Low
	if span == 0 {
		return 0.5, true
	}
	return (cur.Close - prev.Low) / span, true
}

// Detect scores every zone against the latest candle and keeps the best.
// Score = (touch score + closure score) / 2 * zone strength, capped at 1.
func (d *Detector) Detect(candles []models.Candle, zones []models.Zone) Result {
	if len(candles) < 2 {
		return Result{Side: None}
	}
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	best := Result{Side: None}
	for _, z := range zones {
		if z.Price <= 0 {
			continue
		}
		side, dist, ok := d.touch(cur, z.Price)
		if !ok {
			continue
		}
		ratio, inside := closure(cur, prev)
		if !inside {
			continue
		}

		touchScore := 1 - math.Min(1, dist/(z.Price*d.cfg.ProximityScale))
		closureScore := 0.0
		if ratio > d.cfg.MinClosureRatio {
			closureScore = ratio
		}

		score := (touchScore + closureScore) / 2 * z.Strength
		if score > best.Score {
			best = Result{
				Detected:     true,
				Side:         side,
				Score:        math.Min(1, score),
				TouchedLevel: z.Price,
				ZoneStrength: z.Strength,
			}
		}
	}
	return best
}
