package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

func quiet(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{Open: 100, Close: 100.25, High: 100.3, Low: 99.9}
	}
	return out
}

func TestDetectors(t *testing.T) {
	tests := []struct {
		name    string
		detect  func([]models.Candle, Context) detection
		candles []models.Candle
		ctx     Context
		want    float64
		found   bool
	}{
		{
			name:   "engulfing",
			detect: detectEngulfing,
			candles: []models.Candle{
				{Open: 100, Close: 100.5, High: 101, Low: 99.5},
				{Open: 100.2, Close: 101.3, High: 101.5, Low: 99.4},
			},
			want:  1.1 / 1.5,
			found: true,
		},
		{
			name:   "engulfing needs larger body",
			detect: detectEngulfing,
			candles: []models.Candle{
				{Open: 99.5, Close: 101, High: 101, Low: 99.5},
				{Open: 100, Close: 100.5, High: 101.5, Low: 99.4},
			},
		},
		{
			name:    "pin bar",
			detect:  detectPinBar,
			candles: []models.Candle{{Open: 100, Close: 99.9, High: 100.1, Low: 98}},
			want:    (1.9 / 2.1) * (1 - 0.1/2.1),
			found:   true,
		},
		{
			name:   "morning star",
			detect: detectMorningStar,
			candles: []models.Candle{
				{Open: 102, Close: 100, High: 102.5, Low: 99.5},
				{Open: 100, Close: 100.2, High: 100.5, Low: 99.8},
				{Open: 100.3, Close: 101.5, High: 101.6, Low: 100.2},
			},
			want:  0.5,
			found: true,
		},
		{
			name:   "evening star",
			detect: detectEveningStar,
			candles: []models.Candle{
				{Open: 100, Close: 102, High: 102.5, Low: 99.5},
				{Open: 102, Close: 101.9, High: 102.2, Low: 101.7},
				{Open: 101.8, Close: 100.5, High: 101.9, Low: 100.4},
			},
			want:  0.5,
			found: true,
		},
		{
			name:   "break of structure up",
			detect: detectBreakOfStructure,
			candles: append(quiet(4), models.Candle{
				Open: 100.2, Close: 102, High: 102.1, Low: 100.1,
			}),
			want:  (102 - 100.3) / 100.3,
			found: true,
		},
		{
			name:   "fair value gap down",
			detect: detectFairValueGap,
			candles: []models.Candle{
				{Open: 100, Close: 100.2, High: 100.3, Low: 99.9},
				{Open: 98.5, Close: 98.2, High: 98.9, Low: 98},
			},
			want:  (99.9 - 98.9) / 99.9,
			found: true,
		},
		{
			name:   "ema retest from above",
			detect: detectEMARetest,
			candles: append(quiet(9), models.Candle{
				Open: 100.2, Close: 99.8, High: 100.3, Low: 99.7,
			}),
			ctx:   Context{EMA: []float64{100, 100}},
			want:  0.8,
			found: true,
		},
		{
			name:    "ema retest needs ten candles",
			detect:  detectEMARetest,
			candles: quiet(5),
			ctx:     Context{EMA: []float64{100, 100}},
		},
		{
			name:   "zone retest",
			detect: detectZoneRetest,
			candles: []models.Candle{
				{Open: 100.8, Close: 101, High: 101.2, Low: 100.7},
				{Open: 101, Close: 99.5, High: 101.1, Low: 99.4},
			},
			ctx:   Context{Zones: []models.Zone{{Price: 100, Strength: 0.4}}},
			want:  0.6,
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.detect(tt.candles, tt.ctx)
			assert.Equal(t, tt.found, got.detected)
			assert.InDelta(t, tt.want, got.confidence, 1e-9)
			assert.GreaterOrEqual(t, got.confidence, 0.0)
			assert.LessOrEqual(t, got.confidence, 1.0)
		})
	}
}

func TestScorer_NothingDetected(t *testing.T) {
	res := NewScorer(2).Score(quiet(10), Context{})
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 6, res.Applicable)
	assert.Zero(t, res.Score)
	assert.False(t, res.MinMet)
}

func TestScorer_DenominatorFollowsContext(t *testing.T) {
	candles := append(quiet(9), models.Candle{Open: 102.5, Close: 103, High: 103.1, Low: 102.4})
	fvg := (102.4 - 100.3) / 100.3
	bos := (103 - 100.3) / 100.3

	bare := NewScorer(2).Score(candles, Context{})
	require.Equal(t, 2, bare.Count)
	assert.True(t, bare.MinMet)
	assert.Equal(t, 6, bare.Applicable)
	assert.InDelta(t, (fvg+bos)/6, bare.Score, 1e-9)

	withContext := NewScorer(2).Score(candles, Context{
		EMA:   []float64{90, 90},
		Zones: []models.Zone{{Price: 50, Strength: 1}},
	})
	assert.Equal(t, 2, withContext.Count)
	assert.Equal(t, 8, withContext.Applicable)
	assert.InDelta(t, (fvg+bos)/8, withContext.Score, 1e-9)

	kinds := []Kind{withContext.Patterns[0].Kind, withContext.Patterns[1].Kind}
	assert.ElementsMatch(t, []Kind{BreakOfStructure, FairValueGap}, kinds)
}
