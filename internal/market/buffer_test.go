package market

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func candleAt(i int, close float64) models.Candle {
	return models.Candle{
		Timestamp: t0.Add(time.Duration(i) * 5 * time.Minute),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    10,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		candle  models.Candle
		wantErr bool
	}{
		{name: "valid", candle: models.Candle{Open: 10, High: 11, Low: 9, Close: 10.5}},
		{name: "inverted", candle: models.Candle{Open: 10, High: 9, Low: 11, Close: 10}, wantErr: true},
		{name: "open above high", candle: models.Candle{Open: 12, High: 11, Low: 9, Close: 10}, wantErr: true},
		{name: "close below low", candle: models.Candle{Open: 10, High: 11, Low: 9, Close: 8}, wantErr: true},
		{name: "negative volume", candle: models.Candle{Open: 10, High: 11, Low: 9, Close: 10, Volume: -1}, wantErr: true},
		{name: "nan", candle: models.Candle{Open: math.NaN(), High: 11, Low: 9, Close: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candle)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCandle))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuffer_EvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		require.True(t, buf.Push(candleAt(i, float64(100+i))))
	}

	got := buf.Candles()
	require.Len(t, got, 3)
	assert.Equal(t, 102.0, got[0].Close)
	assert.Equal(t, 104.0, got[2].Close)
}

func TestBuffer_ReplacesLiveBarAndIgnoresStale(t *testing.T) {
	buf := NewBuffer(10)
	buf.Push(candleAt(0, 100))
	buf.Push(candleAt(1, 101))

	assert.True(t, buf.Push(candleAt(1, 101.5)))
	assert.False(t, buf.Push(candleAt(0, 99)))

	got := buf.Candles()
	require.Len(t, got, 2)
	assert.Equal(t, 101.5, got[1].Close)
}

func TestStore_DropsOnlyInvalidCandles(t *testing.T) {
	store := NewStore(10)
	bad := candleAt(1, 101)
	bad.High, bad.Low = bad.Low, bad.High

	accepted := store.Append("BTCUSDT", models.M5, []models.Candle{candleAt(0, 100), bad, candleAt(2, 102)})
	assert.Equal(t, 2, accepted)

	got := store.Candles("BTCUSDT", models.M5)
	require.Len(t, got, 2)
	assert.Equal(t, models.M5, got[0].Timeframe)
	assert.Nil(t, store.Candles("BTCUSDT", models.H1))

	last, ok := store.Last("BTCUSDT", models.M5)
	require.True(t, ok)
	assert.Equal(t, 102.0, last.Close)
}

func TestStore_CandlesReturnsCopy(t *testing.T) {
	store := NewStore(5)
	store.Append("X", models.M15, []models.Candle{candleAt(0, 100)})

	got := store.Candles("X", models.M15)
	got[0].Close = 1

	again := store.Candles("X", models.M15)
	assert.Equal(t, 100.0, again[0].Close)
}
