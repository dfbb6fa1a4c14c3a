package indicators

import (
	"math"

	"github.com/Alias1177/HydraX/models"
)

// Body is the absolute open/close distance
func Body(c models.Candle) float64 { return math.Abs(c.Close - c.Open) }

// Range is the full high/low extent
func Range(c models.Candle) float64 { return c.High - c.Low }

// UpperWick is the distance from the body top to the high
func UpperWick(c models.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }

// LowerWick is the distance from the body bottom to the low
func LowerWick(c models.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }

// IsBullish reports close > open
func IsBullish(c models.Candle) bool { return c.Close > c.Open }

// IsBearish reports close < open
func IsBearish(c models.Candle) bool { return c.Close < c.Open }

// Midpoint of the high/low range
func Midpoint(c models.Candle) float64 { return (c.High + c.Low) / 2 }
