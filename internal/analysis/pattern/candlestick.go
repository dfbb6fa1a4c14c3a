package pattern

import (
	"math"

	"github.com/Alias1177/HydraX/internal/indicators"
	"github.com/Alias1177/HydraX/models"
)

// Kind tags one price action pattern
type Kind string

const (
	Engulfing        Kind = "engulfing"
	PinBar           Kind = "pinbar"
	MorningStar      Kind = "morning_star"
	EveningStar      Kind = "evening_star"
	BreakOfStructure Kind = "bos"
	FairValueGap     Kind = "fvg"
	EMARetest        Kind = "ema_retest"
	ZoneRetest       Kind = "sr_retest"
)

// Context is the optional input some patterns need
type Context struct {
	Zones []models.Zone
	EMA   []float64 // tail aligned with the candles
}

// detection is the uniform result of one pattern check
type detection struct {
	detected   bool
	confidence float64
}

func hit(conf float64) detection {
	return detection{detected: true, confidence: clamp01(conf)}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// detector evaluates one pattern; applicable reports whether its inputs exist
type detector struct {
	kind       Kind
	applicable func(ctx Context) bool
	detect     func(candles []models.Candle, ctx Context) detection
}

func always(Context) bool { return true }

var detectors = []detector{
	{kind: Engulfing, applicable: always, detect: detectEngulfing},
	{kind: PinBar, applicable: always, detect: detectPinBar},
	{kind: MorningStar, applicable: always, detect: detectMorningStar},
	{kind: EveningStar, applicable: always, detect: detectEveningStar},
	{kind: BreakOfStructure, applicable: always, detect: detectBreakOfStructure},
	{kind: FairValueGap, applicable: always, detect: detectFairValueGap},
	{kind: EMARetest, applicable: func(ctx Context) bool { return len(ctx.EMA) > 0 }, detect: detectEMARetest},
	{kind: ZoneRetest, applicable: func(ctx Context) bool { return len(ctx.Zones) > 0 }, detect: detectZoneRetest},
}

// detectEngulfing: the latest candle's range covers the previous one and its body is larger
func detectEngulfing(candles []models.Candle, _ Context) detection {
	if len(candles) < 2 {
		return detection{}
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]
	prevRange := indicators.Range(prev)
	if prevRange == 0 {
		return detection{}
	}
	if cur.High > prev.High && cur.Low < prev.Low && indicators.Body(cur) > indicators.Body(prev) {
		return hit(indicators.Body(cur) / prevRange)
	}
	return detection{}
}

// detectPinBar: small body and a long wick beyond the close
func detectPinBar(candles []models.Candle, _ Context) detection {
	if len(candles) < 1 {
		return detection{}
	}
	c := candles[len(candles)-1]
	full := indicators.Range(c)
	if full == 0 {
		return detection{}
	}

	bodyRatio := indicators.Body(c) / full
	if bodyRatio >= 0.3 {
		return detection{}
	}

	var wick float64
	if indicators.IsBullish(c) {
		wick = c.High - c.Close
	} else {
		wick = c.Close - c.Low
	}
	wickRatio := wick / full
	if wickRatio > 0.4 {
		return hit(math.Min(1, wickRatio) * (1 - bodyRatio))
	}
	return detection{}
}

func detectMorningStar(candles []models.Candle, _ Context) detection {
	if len(candles) < 3 {
		return detection{}
	}
	c1, c2, c3 := candles[len(candles)-3], candles[len(candles)-2], candles[len(candles)-1]
	r1 := indicators.Range(c1)
	if r1 == 0 {
		return detection{}
	}
	if indicators.IsBearish(c1) && indicators.Body(c2) < r1*0.5 && indicators.IsBullish(c3) {
		return hit(math.Max(0.5, math.Min(1, (c3.Close-c1.Open)/r1)))
	}
	return detection{}
}

func detectEveningStar(candles []models.Candle, _ Context) detection {
	if len(candles) < 3 {
		return detection{}
	}
	c1, c2, c3 := candles[len(candles)-3], candles[len(candles)-2], candles[len(candles)-1]
	r1 := indicators.Range(c1)
	if r1 == 0 {
		return detection{}
	}
	if indicators.IsBullish(c1) && indicators.Body(c2) < r1*0.5 && indicators.IsBearish(c3) {
		return hit(math.Max(0.5, math.Min(1, (c1.Close-c3.Open)/r1)))
	}
	return detection{}
}

// detectBreakOfStructure: the latest close breaks the extreme of the four
// candles before it, in the direction of its own body
func detectBreakOfStructure(candles []models.Candle, _ Context) detection {
	if len(candles) < 5 {
		return detection{}
	}
	window := candles[len(candles)-5 : len(candles)-1]
	cur := candles[len(candles)-1]

	swingHigh, swingLow := window[0].High, window[0].Low
	for _, c := range window[1:] {
		swingHigh = math.Max(swingHigh, c.High)
		swingLow = math.Min(swingLow, c.Low)
	}

	switch {
	case cur.Close > swingHigh && indicators.IsBullish(cur) && swingHigh > 0:
		return hit((cur.Close - swingHigh) / swingHigh)
	case cur.Close < swingLow && indicators.IsBearish(cur) && swingLow > 0:
		return hit((swingLow - cur.Close) / swingLow)
	}
	return detection{}
}

// detectFairValueGap: no overlap between the last two candles
func detectFairValueGap(candles []models.Candle, _ Context) detection {
	if len(candles) < 2 {
		return detection{}
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]
	switch {
	case cur.Low > prev.High && prev.High > 0:
		return hit((cur.Low - prev.High) / prev.High)
	case cur.High < prev.Low && prev.Low > 0:
		return hit((prev.Low - cur.High) / prev.Low)
	}
	return detection{}
}

// detectEMARetest: price crosses or returns within 0.5% of the EMA
func detectEMARetest(candles []models.Candle, ctx Context) detection {
	if len(candles) < 10 || len(ctx.EMA) < 2 {
		return detection{}
	}
	prevEMA, curEMA := ctx.EMA[len(ctx.EMA)-2], ctx.EMA[len(ctx.EMA)-1]
	if curEMA <= 0 {
		return detection{}
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]

	near := math.Abs(cur.Close-curEMA) < curEMA*0.005
	prevAbove := prev.Close > prevEMA

	retestDown := prevAbove && (cur.Close < curEMA || near)
	retestUp := !prevAbove && (cur.Close > curEMA || near)
	if !retestDown && !retestUp {
		return detection{}
	}

	distance := math.Abs(cur.Close-curEMA) / curEMA
	return hit(1 - math.Min(1, distance/0.01))
}

// detectZoneRetest: the close flips sides of a zone while staying within 1% of it.
// The first matching zone wins.
func detectZoneRetest(candles []models.Candle, ctx Context) detection {
	if len(candles) < 2 {
		return detection{}
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]

	for _, z := range ctx.Zones {
		near := math.Abs(cur.Close-z.Price) < z.Price*0.01
		if near && (prev.Close > z.Price) != (cur.Close > z.Price) {
			return hit(z.Strength * 1.5)
		}
	}
	return detection{}
}
