package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

func TestEMA(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		want   float64
		ok     bool
	}{
		{name: "not enough data", prices: []float64{1, 2}, period: 3, ok: false},
		{name: "seed equals sma", prices: []float64{1, 2, 3}, period: 3, want: 2, ok: true},
		{name: "one step after seed", prices: []float64{1, 2, 3, 6}, period: 3, want: 4, ok: true},
		{name: "zero period", prices: []float64{1, 2, 3}, period: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EMA(tt.prices, tt.period)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestEMASeries_AlignedWithEMA(t *testing.T) {
	prices := []float64{10, 11, 12, 11, 13, 14, 15, 13, 12, 16}
	series := EMASeries(prices, 4)
	require.Len(t, series, len(prices)-3)

	last, ok := EMA(prices, 4)
	require.True(t, ok)
	assert.InDelta(t, last, series[len(series)-1], 1e-9)

	assert.Nil(t, EMASeries(prices[:3], 4))
}

func TestATR(t *testing.T) {
	candles := []models.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 9.5, Close: 10.5}, // tr = 1.5
		{High: 10.5, Low: 8, Close: 8.5},  // tr = 2.5
		{High: 9, Low: 8.5, Close: 8.8},   // tr = 0.5
	}

	atr, ok := ATR(candles, 3)
	require.True(t, ok)
	assert.InDelta(t, 1.5, atr, 1e-9)

	atr, ok = ATR(candles, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.5, atr, 1e-9)

	_, ok = ATR(candles, 4)
	assert.False(t, ok, "needs period+1 candles")
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	prev := models.Candle{Close: 100}
	gapUp := models.Candle{High: 110, Low: 108}
	assert.InDelta(t, 10.0, TrueRange(prev, gapUp), 1e-9)

	gapDown := models.Candle{High: 95, Low: 90}
	assert.InDelta(t, 10.0, TrueRange(prev, gapDown), 1e-9)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
		ok     bool
	}{
		{name: "insufficient", prices: []float64{1, 2}, ok: false},
		{name: "only gains", prices: []float64{1, 2, 3, 4}, want: 100, ok: true},
		{name: "flat", prices: []float64{5, 5, 5, 5}, want: 0, ok: true},
		{name: "balanced", prices: []float64{10, 11, 10, 11}, want: 66.6666666, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.prices, 3)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-4)
			}
		})
	}
}

func TestCandleGeometry(t *testing.T) {
	tests := []struct {
		name    string
		c       models.Candle
		body    float64
		rng     float64
		upper   float64
		lower   float64
		bullish bool
		bearish bool
	}{
		{"bullish", models.Candle{Open: 100, Close: 101, High: 101.5, Low: 99.5}, 1, 2, 0.5, 0.5, true, false},
		{"bearish hammer top", models.Candle{Open: 100.2, Close: 100, High: 102, Low: 99.95}, 0.2, 2.05, 1.8, 0.05, false, true},
		{"doji", models.Candle{Open: 1, Close: 1, High: 1, Low: 1}, 0, 0, 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.body, Body(tt.c), 1e-9)
			assert.InDelta(t, tt.rng, Range(tt.c), 1e-9)
			assert.InDelta(t, tt.upper, UpperWick(tt.c), 1e-9)
			assert.InDelta(t, tt.lower, LowerWick(tt.c), 1e-9)
			assert.Equal(t, tt.bullish, IsBullish(tt.c))
			assert.Equal(t, tt.bearish, IsBearish(tt.c))
			assert.InDelta(t, (tt.c.High+tt.c.Low)/2, Midpoint(tt.c), 1e-9)
		})
	}
}
