package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

// File names inside the data directory
const (
	DailySummaryFile   = "daily_summary_state.json"
	OpenPositionsFile  = "open_positions.json"
	TradeHistoryFile   = "trade_history.json"
	DailyPnLFile       = "daily_pnl.json"
	TrendCacheFile     = "trend_cache.json"
	PACacheFile        = "pa_confirmation_cache.json"
	FirstRunMarkerFile = "hydra_first_run.done"
)

// ErrCorrupt marks a state file that exists but cannot be decoded
var ErrCorrupt = errors.New("corrupt state file")

// Store reads and writes the JSON state files. Single writer only.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewStore creates the data directory if needed
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: log.With().Str("component", "state_store").Str("dir", dir).Logger(),
	}, nil
}

// Dir returns the data directory
func (s *Store) Dir() string { return s.dir }

// Path joins a file name with the data directory
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// writeAtomic writes data to a temp file in the target directory, syncs it
// and renames it over path, so readers see either the old or the new file.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := writeAtomic(s.Path(name), data); err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("Failed to save state")
		return err
	}
	return nil
}

// readJSON decodes a file into v. Missing files return os.ErrNotExist,
// undecodable ones ErrCorrupt.
func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

// readOrWarn treats corrupt files as absent and logs them
func (s *Store) readOrWarn(name string, v any) bool {
	err := s.readJSON(name, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, os.ErrNotExist):
		return false
	default:
		s.logger.Warn().Err(err).Str("file", name).Msg("Ignoring unreadable state file")
		return false
	}
}

// SaveOpenPositions replaces the open positions file
func (s *Store) SaveOpenPositions(positions []models.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if positions == nil {
		positions = []models.OpenPosition{}
	}
	if err := s.writeJSON(OpenPositionsFile, positions); err != nil {
		return err
	}
	s.logger.Debug().Int("positions", len(positions)).Msg("Open positions saved")
	return nil
}

// LoadOpenPositions returns the saved positions; missing or corrupt reads as empty
func (s *Store) LoadOpenPositions() []models.OpenPosition {
	var positions []models.OpenPosition
	if !s.readOrWarn(OpenPositionsFile, &positions) {
		return nil
	}
	return positions
}

// LoadTradeHistory returns the full history. Missing file returns
// os.ErrNotExist, an undecodable one ErrCorrupt.
func (s *Store) LoadTradeHistory() ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	if err := s.readJSON(TradeHistoryFile, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// AppendTrades adds records to the end of the history. A corrupt history is
// logged and replaced by the new records rather than blocking the write.
func (s *Store) AppendTrades(records ...models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.LoadTradeHistory()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Msg("Trade history unreadable, starting a new one")
	}
	trades = append(trades, records...)
	if err := s.writeJSON(TradeHistoryFile, trades); err != nil {
		return err
	}
	s.logger.Debug().Int("trades", len(trades)).Msg("Trade history saved")
	return nil
}

// SaveRiskState writes daily_pnl.json
func (s *Store) SaveRiskState(st models.RiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(DailyPnLFile, st)
}

// LoadRiskState reads daily_pnl.json; ok is false when missing or corrupt
func (s *Store) LoadRiskState() (models.RiskState, bool) {
	var st models.RiskState
	ok := s.readOrWarn(DailyPnLFile, &st)
	return st, ok
}

// SaveDailySummary writes daily_summary_state.json
func (s *Store) SaveDailySummary(sum models.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(DailySummaryFile, sum)
}

// LoadDailySummary reads daily_summary_state.json
func (s *Store) LoadDailySummary() (models.DailySummary, bool) {
	var sum models.DailySummary
	ok := s.readOrWarn(DailySummaryFile, &sum)
	return sum, ok
}

// SaveTrendCache writes the per-symbol trend diagnostics
func (s *Store) SaveTrendCache(cache map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(TrendCacheFile, cache)
}

// SavePACache writes the per-symbol price action diagnostics
func (s *Store) SavePACache(cache map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(PACacheFile, cache)
}

const markerPrefix = "First run completed at "

// MarkerExists reports whether the first run marker is present
func (s *Store) MarkerExists() bool {
	_, ok := s.MarkerTime()
	return ok
}

// MarkerTime returns when the first run marker was written. Markers without
// a readable timestamp fall back to the file's modification time.
func (s *Store) MarkerTime() (time.Time, bool) {
	path := s.Path(FirstRunMarkerFile)
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	if data, err := os.ReadFile(path); err == nil {
		stamp := strings.TrimSpace(strings.TrimPrefix(string(data), markerPrefix))
		if at, err := time.Parse(time.RFC3339, stamp); err == nil {
			return at, true
		}
	}
	return info.ModTime().UTC(), true
}

// WriteMarker creates the first run marker stamped with at
func (s *Store) WriteMarker(at time.Time) error {
	body := markerPrefix + at.UTC().Format(time.RFC3339) + "\n"
	if err := writeAtomic(s.Path(FirstRunMarkerFile), []byte(body)); err != nil {
		return err
	}
	s.logger.Info().Msg("First run marker written")
	return nil
}
