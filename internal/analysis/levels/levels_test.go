package levels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

// zigzag builds candles whose highs peak at every 4th index and lows bottom
// between peaks, producing clean swings.
func zigzag(n int, peak, trough float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		mid := (peak + trough) / 2
		c := models.Candle{Open: mid, Close: mid, High: mid + 1, Low: mid - 1}
		switch i % 8 {
		case 4:
			c.High = peak
		case 0:
			c.Low = trough
		}
		out[i] = c
	}
	return out
}

func TestFindSwings(t *testing.T) {
	candles := zigzag(24, 110, 90)
	swings := FindSwings(candles, 3)

	var highs, lows int
	for _, s := range swings {
		switch s.Kind {
		case models.Resistance:
			highs++
			assert.Equal(t, 110.0, s.Price)
		case models.Support:
			lows++
			assert.Equal(t, 90.0, s.Price)
		}
	}
	assert.Equal(t, 3, highs)
	assert.Equal(t, 2, lows)

	assert.Nil(t, FindSwings(candles[:5], 3))
}

func TestFindSwings_EqualHighsAreNotSwings(t *testing.T) {
	candles := make([]models.Candle, 7)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, Close: 100, High: 101, Low: 99}
	}
	assert.Empty(t, FindSwings(candles, 3))
}

func TestCluster(t *testing.T) {
	swings := []Swing{
		{Price: 100.00, Kind: models.Resistance},
		{Price: 100.04, Kind: models.Resistance},
		{Price: 100.02, Kind: models.Resistance},
		{Price: 105.00, Kind: models.Resistance}, // alone, dropped
		{Price: 90.00, Kind: models.Support},
		{Price: 90.01, Kind: models.Support},
	}

	zones := Cluster(swings, DefaultConfig())
	require.Len(t, zones, 2)

	res := zones[0]
	assert.Equal(t, models.Resistance, res.Kind)
	assert.Equal(t, 3, res.Touches)
	assert.InDelta(t, 100.02, res.Price, 1e-9)
	assert.InDelta(t, 0.6, res.Strength, 1e-9)

	sup := zones[1]
	assert.Equal(t, models.Support, sup.Kind)
	assert.Equal(t, 2, sup.Touches)
	assert.InDelta(t, 0.4, sup.Strength, 1e-9)
}

func TestCluster_StrengthCapped(t *testing.T) {
	var swings []Swing
	for i := 0; i < 8; i++ {
		swings = append(swings, Swing{Price: 50, Kind: models.Support})
	}
	zones := Cluster(swings, DefaultConfig())
	require.Len(t, zones, 1)
	assert.Equal(t, 1.0, zones[0].Strength)
}

func TestDetector_RebuildsOnlyAfterThreshold(t *testing.T) {
	d := NewDetector(Config{})
	first := zigzag(40, 110, 90)

	zones := d.Update(first, len(first))
	require.NotEmpty(t, zones)

	// different levels but too few new candles: stale zones are kept
	shifted := zigzag(40, 210, 190)
	zones = d.Update(shifted, 10)
	assert.Equal(t, 110.0, zones[0].Price)

	zones = d.Update(shifted, 100)
	assert.Equal(t, 210.0, zones[0].Price)

	z, ok := d.Nearest(195, models.Support)
	require.True(t, ok)
	assert.Equal(t, 190.0, z.Price)

	_, ok = NewDetector(Config{}).Nearest(100, "")
	assert.False(t, ok)
}
