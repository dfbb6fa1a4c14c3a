package signal

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

// DefaultLogSize is how many decisions the rolling log keeps
const DefaultLogSize = 100

// Mirror receives every recorded decision, e.g. for external viewers
type Mirror interface {
	Push(ctx context.Context, d models.SignalDecision) error
}

// Log is an in-memory rolling history of decisions plus the latest per symbol
type Log struct {
	mu      sync.RWMutex
	size    int
	entries []models.SignalDecision
	current map[string]models.SignalDecision
	mirror  Mirror
	logger  zerolog.Logger
}

// NewLog creates a rolling log; mirror may be nil
func NewLog(size int, mirror Mirror) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{
		size:    size,
		current: make(map[string]models.SignalDecision),
		mirror:  mirror,
		logger:  log.With().Str("component", "signal_log").Logger(),
	}
}

// Record appends a decision, evicting the oldest beyond capacity. Mirror
// failures are logged and otherwise ignored.
func (l *Log) Record(ctx context.Context, d models.SignalDecision) {
	l.mu.Lock()
	l.entries = append(l.entries, d)
	if len(l.entries) > l.size {
		l.entries = append([]models.SignalDecision(nil), l.entries[len(l.entries)-l.size:]...)
	}
	l.current[d.Symbol] = d
	l.mu.Unlock()

	if l.mirror == nil {
		return
	}
	if err := l.mirror.Push(ctx, d); err != nil {
		l.logger.Warn().Err(err).Str("symbol", d.Symbol).Msg("Failed to mirror signal")
	}
}

// History returns up to limit most recent decisions, oldest first
func (l *Log) History(limit int) []models.SignalDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]models.SignalDecision, limit)
	copy(out, l.entries[len(l.entries)-limit:])
	return out
}

// Current returns the latest decision for a symbol
func (l *Log) Current(symbol string) (models.SignalDecision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.current[symbol]
	return d, ok
}

// Len returns the number of retained decisions
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
