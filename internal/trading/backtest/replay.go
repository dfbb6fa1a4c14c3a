package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Alias1177/HydraX/models"
)

// replaySource serves history up to a movable cursor. Only candles that have
// closed by the end of the current entry candle are visible, so higher
// timeframes never leak future prices.
type replaySource struct {
	mu     sync.Mutex
	series map[string]map[models.Timeframe][]models.Candle
	cursor time.Time
	step   time.Duration // entry timeframe length
}

func newReplaySource(step time.Duration) *replaySource {
	return &replaySource{series: make(map[string]map[models.Timeframe][]models.Candle), step: step}
}

func (r *replaySource) load(symbol string, tf models.Timeframe, candles []models.Candle) {
	sorted := append([]models.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.series[symbol] == nil {
		r.series[symbol] = make(map[models.Timeframe][]models.Candle)
	}
	r.series[symbol][tf] = sorted
}

func (r *replaySource) seek(t time.Time) {
	r.mu.Lock()
	r.cursor = t
	r.mu.Unlock()
}

func (r *replaySource) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.series[symbol][tf]
	horizon := r.cursor.Add(r.step)
	n := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp.Add(tf.Duration()).After(horizon)
	})
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}
	return append([]models.Candle(nil), all[start:n]...), nil
}

// memoryStore keeps executor state for one replay
type memoryStore struct {
	mu        sync.Mutex
	positions []models.OpenPosition
	trades    []models.TradeRecord
}

func (m *memoryStore) SaveOpenPositions(p []models.OpenPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append([]models.OpenPosition(nil), p...)
	return nil
}

func (m *memoryStore) LoadOpenPositions() []models.OpenPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OpenPosition(nil), m.positions...)
}

func (m *memoryStore) LoadTradeHistory() ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TradeRecord(nil), m.trades...), nil
}

func (m *memoryStore) AppendTrades(recs ...models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, recs...)
	return nil
}

// a replay never needs the cold start probe
func (m *memoryStore) MarkerTime() (time.Time, bool) { return time.Now(), true }
func (m *memoryStore) WriteMarker(time.Time) error   { return nil }

// immediateTimer lets retries proceed without waiting
type immediateTimer struct{ c chan time.Time }

func (t *immediateTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}
func (t *immediateTimer) Stop()               {}
func (t *immediateTimer) C() <-chan time.Time { return t.c }
