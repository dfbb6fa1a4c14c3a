package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

var start = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func quiet(n int, tf models.Timeframe) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * tf.Duration()),
			Open:      100, Close: 100, High: 100.5, Low: 99.5,
			Timeframe: tf,
		}
	}
	return out
}

func withLast(candles []models.Candle, c models.Candle) []models.Candle {
	c.Timestamp = candles[len(candles)-1].Timestamp.Add(5 * time.Minute)
	return append(candles, c)
}

var (
	bullBar = models.Candle{Open: 100, Close: 130, High: 130.5, Low: 99.8}
	bearBar = models.Candle{Open: 100, Close: 70, High: 100.2, Low: 69.5}
)

func newTestGenerator(minStrength float64) *Generator {
	cfg := DefaultConfig()
	cfg.MinStrength = minStrength
	g := NewGenerator(cfg)
	g.now = func() time.Time { return start }
	return g
}

func TestGenerate_Gates(t *testing.T) {
	mid := quiet(10, models.M15)
	higher := quiet(3, models.H1)

	tests := []struct {
		name   string
		input  Input
		reason string
		entry  float64
	}{
		{
			name:   "missing higher timeframe",
			input:  Input{Symbol: "BTCUSDT", Entry: quiet(60, models.M5), Mid: mid},
			reason: models.SkipInsufficientData,
		},
		{
			name:   "spread too wide",
			input:  Input{Symbol: "BTCUSDT", Entry: quiet(60, models.M5), Mid: mid, Higher: higher, SpreadPoints: 60},
			reason: models.SkipSpreadTooWide,
			entry:  100,
		},
		{
			name:   "no breakout",
			input:  Input{Symbol: "BTCUSDT", Entry: quiet(60, models.M5), Mid: mid, Higher: higher, SpreadPoints: 5},
			reason: models.SkipNoBreakout,
			entry:  100,
		},
		{
			name:   "strength too low",
			input:  Input{Symbol: "BTCUSDT", Entry: withLast(quiet(59, models.M5), bullBar), Mid: mid, Higher: higher},
			reason: models.SkipStrengthTooLow,
			entry:  (130.5 + 99.8) / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestGenerator(0.5).Generate(tt.input)
			d := res.Decision
			assert.Equal(t, models.None, d.Direction)
			assert.Equal(t, tt.reason, d.SkipReason)
			assert.InDelta(t, tt.entry, d.EntryPrice, 1e-9)
			assert.False(t, d.Actionable())
			assert.Equal(t, start, d.Timestamp)
		})
	}
}

func TestGenerate_NoBreakoutKeepsDiagnostics(t *testing.T) {
	res := newTestGenerator(0.5).Generate(Input{
		Symbol: "XAUTUSDT",
		Entry:  quiet(60, models.M5),
		Mid:    quiet(10, models.M15),
		Higher: quiet(3, models.H1),
	})

	scores := res.Decision.ComponentScores
	assert.Equal(t, 0.7, scores["trend_strength"])
	assert.Equal(t, "ranging", scores["trend_direction"])
	assert.Contains(t, scores, "pa_score")
	assert.Contains(t, scores, "sweep_score")
	require.NotNil(t, res.Trend)
	require.NotNil(t, res.PriceAction)
	assert.Zero(t, res.Decision.StopLoss)
}

func TestGenerate_StrengthTooLowRetainsPrices(t *testing.T) {
	res := newTestGenerator(0.5).Generate(Input{
		Symbol: "BTCUSDT",
		Entry:  withLast(quiet(59, models.M5), bullBar),
		Mid:    quiet(10, models.M15),
		Higher: quiet(3, models.H1),
	})

	d := res.Decision
	require.Equal(t, models.SkipStrengthTooLow, d.SkipReason)
	assert.Greater(t, d.Strength, 0.0)
	assert.Less(t, d.Strength, 0.5)
	assert.NotZero(t, d.StopLoss)
	assert.NotZero(t, d.TP1)
}

func TestGenerate_Actionable(t *testing.T) {
	atr := (13 + 30.7) / 14

	tests := []struct {
		name  string
		bar   models.Candle
		dir   models.Direction
		entry float64
		sl    float64
		tp1   float64
		tp2   float64
	}{
		{
			name:  "long",
			bar:   bullBar,
			dir:   models.Long,
			entry: (130.5 + 99.8) / 2,
			sl:    99.5 - 20*130.0/10000,
			tp1:   (130.5+99.8)/2 + atr*1.5,
			tp2:   (130.5+99.8)/2 + atr*2.5,
		},
		{
			name:  "short",
			bar:   bearBar,
			dir:   models.Short,
			entry: (100.2 + 69.5) / 2,
			sl:    100.5 + 20*70.0/10000,
			tp1:   (100.2+69.5)/2 - atr*1.5,
			tp2:   (100.2+69.5)/2 - atr*2.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestGenerator(0.4).Generate(Input{
				Symbol:       "BTCUSDT",
				Entry:        withLast(quiet(59, models.M5), tt.bar),
				Mid:          quiet(10, models.M15),
				Higher:       quiet(3, models.H1),
				SpreadPoints: 5,
			})

			d := res.Decision
			require.True(t, d.Actionable(), "skip reason %q", d.SkipReason)
			assert.Equal(t, tt.dir, d.Direction)
			assert.InDelta(t, tt.entry, d.EntryPrice, 1e-9)
			assert.InDelta(t, tt.sl, d.StopLoss, 1e-9)
			assert.InDelta(t, tt.tp1, d.TP1, 1e-9)
			assert.InDelta(t, tt.tp2, d.TP2, 1e-9)
			assert.GreaterOrEqual(t, d.Strength, 0.4)
			assert.LessOrEqual(t, d.Strength, 1.0)
			assert.Equal(t, 1.0, d.ComponentScores["breakout_score"])
		})
	}
}
