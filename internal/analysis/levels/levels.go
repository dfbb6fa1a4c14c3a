package levels

import (
	"math"
	"sort"

	"github.com/Alias1177/HydraX/models"
)

// Config controls swing detection and clustering
type Config struct {
	Lookback       int
	Tolerance      float64 // fraction of the cluster anchor price
	MinTouches     int
	RebuildEvery   int
	FullStrengthAt int
}

// DefaultConfig returns lookback 3, tolerance 0.05%, 2 touches, rebuild every 100 candles
func DefaultConfig() Config {
	return Config{
		Lookback:       3,
		Tolerance:      0.0005,
		MinTouches:     2,
		RebuildEvery:   100,
		FullStrengthAt: 5,
	}
}

// Swing is a local extreme found by FindSwings
type Swing struct {
	Index int
	Price float64
	Kind  models.ZoneKind
}

// FindSwings returns swing highs (as resistance) and swing lows (as support).
// A candle is a swing high when its high strictly exceeds the highs of the
// lookback candles on both sides; swing lows mirror that on lows.
func FindSwings(candles []models.Candle, lookback int) []Swing {
	if lookback <= 0 || len(candles) < 2*lookback+1 {
		return nil
	}

	var swings []Swing
	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= lookback; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isHigh = false
			}
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, Swing{Index: i, Price: candles[i].High, Kind: models.Resistance})
		}
		if isLow {
			swings = append(swings, Swing{Index: i, Price: candles[i].Low, Kind: models.Support})
		}
	}
	return swings
}

// Cluster groups swings of the same kind into zones. Swings are sorted by
// price and appended to the current group while within tolerance of the
// group's first member. Groups below minTouches are discarded.
func Cluster(swings []Swing, cfg Config) []models.Zone {
	var zones []models.Zone
	for _, kind := range []models.ZoneKind{models.Resistance, models.Support} {
		var prices []float64
		for _, s := range swings {
			if s.Kind == kind {
				prices = append(prices, s.Price)
			}
		}
		if len(prices) == 0 {
			continue
		}
		sort.Float64s(prices)

		group := []float64{prices[0]}
		flush := func() {
			if len(group) >= cfg.MinTouches {
				zones = append(zones, newZone(kind, group, cfg.FullStrengthAt))
			}
		}
		for _, p := range prices[1:] {
			anchor := group[0]
			if math.Abs(p-anchor) <= anchor*cfg.Tolerance {
				group = append(group, p)
				continue
			}
			flush()
			group = []float64{p}
		}
		flush()
	}
	return zones
}

func newZone(kind models.ZoneKind, prices []float64, fullAt int) models.Zone {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	if fullAt <= 0 {
		fullAt = 5
	}
	return models.Zone{
		Price:    sum / float64(len(prices)),
		Kind:     kind,
		Touches:  len(prices),
		Strength: math.Min(1, float64(len(prices))/float64(fullAt)),
	}
}

// Detector caches zones and rebuilds them only after enough new candles.
// Zones may be stale between rebuilds.
type Detector struct {
	cfg         Config
	zones       []models.Zone
	sinceUpdate int
}

// NewDetector creates a support/resistance detector, zero fields take defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MinTouches <= 0 {
		cfg.MinTouches = def.MinTouches
	}
	if cfg.RebuildEvery <= 0 {
		cfg.RebuildEvery = def.RebuildEvery
	}
	if cfg.FullStrengthAt <= 0 {
		cfg.FullStrengthAt = def.FullStrengthAt
	}
	return &Detector{cfg: cfg}
}

// Update counts newCandles towards the rebuild threshold and rebuilds the
// zones from candles when the threshold is reached or no zones exist yet.
func (d *Detector) Update(candles []models.Candle, newCandles int) []models.Zone {
	d.sinceUpdate += newCandles
	if d.sinceUpdate >= d.cfg.RebuildEvery || len(d.zones) == 0 {
		d.zones = Cluster(FindSwings(candles, d.cfg.Lookback), d.cfg)
		d.sinceUpdate = 0
	}
	return d.Zones()
}

// Zones returns a copy of the cached zones
func (d *Detector) Zones() []models.Zone {
	out := make([]models.Zone, len(d.zones))
	copy(out, d.zones)
	return out
}

// Nearest returns the zone closest to price. An empty kind matches any zone.
func (d *Detector) Nearest(price float64, kind models.ZoneKind) (models.Zone, bool) {
	var best models.Zone
	found := false
	for _, z := range d.zones {
		if kind != "" && z.Kind != kind {
			continue
		}
		if !found || math.Abs(z.Price-price) < math.Abs(best.Price-price) {
			best = z
			found = true
		}
	}
	return best, found
}
