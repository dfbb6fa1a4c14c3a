package indicators

import (
	"math"

	"github.com/Alias1177/HydraX/models"
)

// Closes extracts close prices from candles
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// EMA calculates the exponential moving average of the whole series.
// The seed is the simple average of the first period values; ok is false
// when fewer than period values are available.
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}

	return ema, true
}

// EMASeries returns the EMA value for every index starting at period-1.
// The returned slice is aligned with the tail of prices: out[i] corresponds to
// prices[len(prices)-len(out)+i]. Nil means the series is undefined.
func EMASeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// TrueRange is the greatest of high-low, |high-prevClose| and |low-prevClose|
func TrueRange(prev, cur models.Candle) float64 {
	highLow := cur.High - cur.Low
	highPrevClose := math.Abs(cur.High - prev.Close)
	lowPrevClose := math.Abs(cur.Low - prev.Close)
	return math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
}

// TrueRanges returns len(candles)-1 true ranges, one per candle after the first
func TrueRanges(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		out = append(out, TrueRange(candles[i-1], candles[i]))
	}
	return out
}

// ATR calculates the Average True Range as the mean of the last period true ranges
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 {
		return 0, false
	}
	trueRanges := TrueRanges(candles)
	if len(trueRanges) < period {
		return 0, false
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		sum += tr
	}
	return sum / float64(period), true
}

// RSI calculates the relative strength index over the last period deltas
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain > 0 {
			return 100.0, true
		}
		return 0, true
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), true
}

// Mean returns the arithmetic average, ok=false for an empty slice
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
