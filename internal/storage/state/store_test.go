package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func noTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestTradeHistory_RoundTripPreservesOrder(t *testing.T) {
	s := newStore(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	records := []models.TradeRecord{
		{EntryTime: base, Symbol: "BTCUSDT", Direction: models.Long, EntryPrice: 65000.5, ExitPrice: 65300.25, PnL: 12.3456789, ExitReason: models.ExitTP1, ExitTime: base.Add(time.Hour)},
		{EntryTime: base.Add(2 * time.Hour), Symbol: "XAUTUSDT", Direction: models.Short, EntryPrice: 2350.1, ExitPrice: 2360.9, PnL: -4.2, ExitReason: models.ExitStopLoss, ExitTime: base.Add(3 * time.Hour)},
	}

	require.NoError(t, s.AppendTrades(records[0]))
	require.NoError(t, s.AppendTrades(records[1]))

	got, err := s.LoadTradeHistory()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range records {
		assert.True(t, records[i].EntryTime.Equal(got[i].EntryTime))
		assert.True(t, records[i].ExitTime.Equal(got[i].ExitTime))
		got[i].EntryTime, got[i].ExitTime = records[i].EntryTime, records[i].ExitTime
		assert.Equal(t, records[i], got[i])
	}
	noTempFiles(t, s.Dir())
}

func TestOpenPositions_ReplacedWholesale(t *testing.T) {
	s := newStore(t)

	first := []models.OpenPosition{{Symbol: "A", Direction: models.Long}, {Symbol: "B", Direction: models.Short}}
	require.NoError(t, s.SaveOpenPositions(first))
	require.NoError(t, s.SaveOpenPositions([]models.OpenPosition{{Symbol: "C", Direction: models.Long, PositionSize: 0.5}}))

	got := s.LoadOpenPositions()
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, 0.5, got[0].PositionSize)
	noTempFiles(t, s.Dir())
}

func TestWriteAtomic_KeepsPreviousFileOnFailure(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveOpenPositions([]models.OpenPosition{{Symbol: "A"}}))

	// rename onto a directory fails; the old file must survive untouched
	target := s.Path("blocked.json")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "x"), []byte("x"), 0o644))
	err := writeAtomic(target, []byte("{}"))
	require.Error(t, err)

	got := s.LoadOpenPositions()
	require.Len(t, got, 1)
	noTempFiles(t, s.Dir())
}

func TestCorruptFilesReadAsAbsent(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{OpenPositionsFile, DailyPnLFile, TradeHistoryFile, DailySummaryFile} {
		require.NoError(t, os.WriteFile(s.Path(name), []byte("{not json"), 0o644))
	}

	assert.Nil(t, s.LoadOpenPositions())
	_, ok := s.LoadRiskState()
	assert.False(t, ok)
	_, ok = s.LoadDailySummary()
	assert.False(t, ok)

	_, err := s.LoadTradeHistory()
	assert.True(t, errors.Is(err, ErrCorrupt))

	// appending over a corrupt history starts a new one
	require.NoError(t, s.AppendTrades(models.TradeRecord{Symbol: "A"}))
	got, err := s.LoadTradeHistory()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMissingHistory(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadTradeHistory()
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRiskStateAndSummary(t *testing.T) {
	s := newStore(t)
	st := models.RiskState{Date: "2024-06-01", CumulativePnL: -150.5, TradesToday: 2, LosingTrades: 2, ConsecutiveLosses: 2}
	require.NoError(t, s.SaveRiskState(st))

	got, ok := s.LoadRiskState()
	require.True(t, ok)
	assert.Equal(t, st, got)

	sum := models.DailySummary{Date: "2024-06-01", Balance: 10000, Status: models.StatusHalted, ShutdownReason: "limit"}
	require.NoError(t, s.SaveDailySummary(sum))
	gotSum, ok := s.LoadDailySummary()
	require.True(t, ok)
	assert.Equal(t, models.StatusHalted, gotSum.Status)
	assert.Equal(t, "limit", gotSum.ShutdownReason)

	require.NoError(t, s.SaveTrendCache(map[string]any{"BTCUSDT": map[string]any{"m15_trend": "bullish"}}))
	require.NoError(t, s.SavePACache(map[string]any{"BTCUSDT": 0.3}))
	assert.FileExists(t, s.Path(TrendCacheFile))
	assert.FileExists(t, s.Path(PACacheFile))
	noTempFiles(t, s.Dir())
}

func TestMarker(t *testing.T) {
	s := newStore(t)
	assert.False(t, s.MarkerExists())
	_, ok := s.MarkerTime()
	assert.False(t, ok)

	at := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.WriteMarker(at))
	assert.True(t, s.MarkerExists())
	got, ok := s.MarkerTime()
	require.True(t, ok)
	assert.True(t, at.Equal(got))
	noTempFiles(t, s.Dir())
}

func TestMarkerTime_FallsBackToModTime(t *testing.T) {
	s := newStore(t)
	path := s.Path(FirstRunMarkerFile)
	require.NoError(t, os.WriteFile(path, []byte("done\n"), 0o644))
	mtime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	got, ok := s.MarkerTime()
	require.True(t, ok)
	assert.True(t, mtime.Equal(got))
}
