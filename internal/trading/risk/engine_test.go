package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/internal/storage/state"
	"github.com/Alias1177/HydraX/models"
)

type memStore struct {
	st    models.RiskState
	has   bool
	saves int
}

func (m *memStore) LoadRiskState() (models.RiskState, bool) { return m.st, m.has }

func (m *memStore) SaveRiskState(st models.RiskState) error {
	m.st, m.has = st, true
	m.saves++
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newEngine(t *testing.T) (*Engine, *memStore, *clock) {
	t.Helper()
	store := &memStore{}
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(DefaultConfig(), store, WithClock(c.now)), store, c
}

func TestPositionSize(t *testing.T) {
	e, _, _ := newEngine(t)

	tests := []struct {
		name     string
		entry    float64
		stopLoss float64
		want     float64
	}{
		{name: "standard", entry: 100, stopLoss: 95, want: 35.0},
		{name: "short side", entry: 95, stopLoss: 100, want: 35.0},
		{name: "degenerate", entry: 100, stopLoss: 100, want: 0},
		{name: "raised to min lot", entry: 100, stopLoss: 1e9, want: 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.PositionSize(tt.entry, tt.stopLoss), 0.01)
		})
	}
}

func TestSizePosition_RoundsToPrecision(t *testing.T) {
	got := SizePosition(10000, 1.75, 100, 97, 0.001, 8)
	assert.Equal(t, 58.33333333, got)
}

func TestSpreadOK(t *testing.T) {
	e, _, _ := newEngine(t)

	tests := []struct {
		name string
		bid  float64
		ask  float64
		ok   bool
	}{
		{name: "tight spread", bid: 100, ask: 100.005, ok: true},
		{name: "wide spread", bid: 100, ask: 101, ok: false},
		{name: "crossed", bid: 101, ask: 100, ok: false},
		{name: "zero bid", bid: 0, ask: 100, ok: false},
		{name: "negative ask", bid: 100, ask: -1, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := e.SpreadOK(tt.bid, tt.ask)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCheckSlippage(t *testing.T) {
	e, _, _ := newEngine(t)

	ok, pct := e.CheckSlippage(100, 100.01)
	assert.True(t, ok)
	assert.InDelta(t, 0.01, pct, 1e-9)

	ok, _ = e.CheckSlippage(100, 100.2)
	assert.False(t, ok)

	ok, _ = e.CheckSlippage(0, 1)
	assert.False(t, ok)

	valid, reason := e.ValidateFill(100, 100.005, 100, 100.2)
	assert.False(t, valid)
	assert.Contains(t, reason, "slippage")
}

func TestConsecutiveLossBreaker(t *testing.T) {
	e, store, _ := newEngine(t)

	e.RecordTrade(-10)
	ok, _ := e.CanTrade()
	assert.True(t, ok, "one loss keeps trading")
	assert.Equal(t, 1, e.State().ConsecutiveLosses)

	e.RecordTrade(-10)
	ok, reason := e.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "consecutive")
	assert.True(t, errors.Is(e.Check(), ErrCircuitOpen))
	assert.Equal(t, 2, store.st.ConsecutiveLosses)

	e.RecordTrade(25)
	ok, _ = e.CanTrade()
	assert.True(t, ok, "a win resets the counter")
	assert.Equal(t, 0, e.State().ConsecutiveLosses)
}

func TestDailyLossBreaker(t *testing.T) {
	e, store, c := newEngine(t)
	require.Equal(t, -500.0, e.DailyLossLimit())

	e.RecordTrade(-200)
	e.Reset()
	e.RecordTrade(-150)
	e.Reset()
	ok, _ := e.CanTrade()
	require.True(t, ok)

	e.RecordTrade(-300)
	e.Reset()
	ok, reason := e.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss")
	assert.Equal(t, reason, e.ShutdownReason())
	assert.InDelta(t, -650, store.st.CumulativePnL, 1e-9)
	assert.Equal(t, 3, store.st.TradesToday)
	assert.Equal(t, 3, store.st.LosingTrades)

	// still blocked later the same day
	c.t = c.t.Add(6 * time.Hour)
	ok, _ = e.CanTrade()
	assert.False(t, ok)

	// date rollover clears the accumulation
	c.t = c.t.Add(12 * time.Hour)
	ok, _ = e.CanTrade()
	assert.True(t, ok)
	assert.Zero(t, e.State().CumulativePnL)
	assert.Equal(t, "2024-06-02", store.st.Date)
}

func TestRestoreFromStore(t *testing.T) {
	dir := t.TempDir()
	s, err := state.NewStore(dir)
	require.NoError(t, err)

	c := &clock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	first := NewEngine(DefaultConfig(), s, WithClock(c.now))
	first.RecordTrade(-40)
	first.RecordTrade(-60)

	// same day restart keeps the tripped breaker
	second := NewEngine(DefaultConfig(), s, WithClock(c.now))
	ok, _ := second.CanTrade()
	assert.False(t, ok)
	assert.InDelta(t, -100, second.State().CumulativePnL, 1e-9)

	// next day restart resets PnL but not the loss streak
	c.t = c.t.Add(24 * time.Hour)
	third := NewEngine(DefaultConfig(), s, WithClock(c.now))
	st := third.State()
	assert.Zero(t, st.CumulativePnL)
	assert.Equal(t, 2, st.ConsecutiveLosses)
}
