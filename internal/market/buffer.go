package market

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

// DefaultCapacity is the number of candles kept per symbol/timeframe
const DefaultCapacity = 500

// ErrInvalidCandle is returned by Validate for malformed OHLC data
var ErrInvalidCandle = errors.New("invalid candle")

// Validate checks a candle for inverted ranges, out-of-range open/close,
// negative volume and non-finite values
func Validate(c models.Candle) error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidCandle)
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high %.8f below low %.8f", ErrInvalidCandle, c.High, c.Low)
	}
	if c.Open > c.High || c.Open < c.Low {
		return fmt.Errorf("%w: open outside range", ErrInvalidCandle)
	}
	if c.Close > c.High || c.Close < c.Low {
		return fmt.Errorf("%w: close outside range", ErrInvalidCandle)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrInvalidCandle)
	}
	return nil
}

// Buffer is a fixed-capacity ring of candles ordered by timestamp
type Buffer struct {
	data  []models.Candle
	start int
	size  int
}

// NewBuffer creates an empty ring; capacity <= 0 falls back to DefaultCapacity
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]models.Candle, capacity)}
}

// Len returns the number of stored candles
func (b *Buffer) Len() int { return b.size }

// Cap returns the ring capacity
func (b *Buffer) Cap() int { return len(b.data) }

// Last returns the newest candle
func (b *Buffer) Last() (models.Candle, bool) {
	if b.size == 0 {
		return models.Candle{}, false
	}
	return b.data[b.index(b.size-1)], true
}

// Push stores one candle. A candle with the same timestamp as the newest one
// replaces it (live bar update); older candles are ignored. Returns false when
// the candle was ignored.
func (b *Buffer) Push(c models.Candle) bool {
	if last, ok := b.Last(); ok {
		switch {
		case c.Timestamp.Equal(last.Timestamp):
			b.data[b.index(b.size-1)] = c
			return true
		case c.Timestamp.Before(last.Timestamp):
			return false
		}
	}

	if b.size < len(b.data) {
		b.data[b.index(b.size)] = c
		b.size++
		return true
	}

	// full: overwrite the oldest
	b.data[b.start] = c
	b.start = (b.start + 1) % len(b.data)
	return true
}

// Candles returns a copy ordered oldest to newest
func (b *Buffer) Candles() []models.Candle {
	out := make([]models.Candle, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[b.index(i)]
	}
	return out
}

func (b *Buffer) index(i int) int {
	return (b.start + i) % len(b.data)
}

type key struct {
	symbol string
	tf     models.Timeframe
}

// Store keeps one Buffer per (symbol, timeframe)
type Store struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[key]*Buffer
	logger   zerolog.Logger
}

// NewStore creates a candle store with the given per-series capacity
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		buffers:  make(map[key]*Buffer),
		logger:   log.With().Str("component", "candle_store").Logger(),
	}
}

// Append validates and stores candles for a series. Invalid candles are
// dropped one by one and logged; the rest of the batch is kept.
// Returns how many candles were accepted.
func (s *Store) Append(symbol string, tf models.Timeframe, candles []models.Candle) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{symbol: symbol, tf: tf}
	buf, ok := s.buffers[k]
	if !ok {
		buf = NewBuffer(s.capacity)
		s.buffers[k] = buf
	}

	accepted := 0
	for _, c := range candles {
		if err := Validate(c); err != nil {
			s.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Str("timeframe", string(tf)).
				Time("timestamp", c.Timestamp).
				Msg("Dropping candle")
			continue
		}
		if c.Timeframe == "" {
			c.Timeframe = tf
		}
		if buf.Push(c) {
			accepted++
		}
	}
	return accepted
}

// Candles returns a copy of the series, nil when nothing is stored
func (s *Store) Candles(symbol string, tf models.Timeframe) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[key{symbol: symbol, tf: tf}]
	if !ok || buf.Len() == 0 {
		return nil
	}
	return buf.Candles()
}

// Last returns the newest candle of a series
func (s *Store) Last(symbol string, tf models.Timeframe) (models.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[key{symbol: symbol, tf: tf}]
	if !ok {
		return models.Candle{}, false
	}
	return buf.Last()
}
