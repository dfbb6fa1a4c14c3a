package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Alias1177/HydraX/models"
)

// ProbeConfig sizes the cold start safety trade
type ProbeConfig struct {
	RiskPct     float64 // of account balance
	StopPct     float64 // stop distance as percent of price
	MinSize     float64
	TP1Multiple float64 // of the stop distance
	TP2Multiple float64
	StaleAfter  time.Duration
}

// DefaultProbeConfig risks 0.02% with a 1% stop and treats 30 quiet days as a cold start
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		RiskPct:     0.02,
		StopPct:     1,
		MinSize:     0.001,
		TP1Multiple: 1.5,
		TP2Multiple: 2.5,
		StaleAfter:  30 * 24 * time.Hour,
	}
}

// ProbePlan is the fully priced safety trade
type ProbePlan struct {
	Size     float64
	StopLoss float64
	TP1      float64
	TP2      float64
}

// Plan prices a probe at price for the given direction and balance
func (c ProbeConfig) Plan(dir models.Direction, price, balance float64) ProbePlan {
	dist := price * c.StopPct / 100
	size := c.MinSize
	if dist > 0 {
		size = math.Max(balance*c.RiskPct/100/dist, c.MinSize)
	}

	sign := 1.0
	if dir == models.Short {
		sign = -1
	}
	return ProbePlan{
		Size:     size,
		StopLoss: price - sign*dist,
		TP1:      price + sign*dist*c.TP1Multiple,
		TP2:      price + sign*dist*c.TP2Multiple,
	}
}

// ProbeRequired reports whether the cold start probe should run, and why.
// It runs when the marker is missing, when the trade history is unreadable,
// or when neither the marker nor the last trade is newer than staleAfter.
// A probe that is still open leaves no history, so its marker alone counts
// as recent activity.
func ProbeRequired(store Store, now time.Time, staleAfter time.Duration) (bool, string) {
	markedAt, ok := store.MarkerTime()
	if !ok {
		return true, "marker file missing"
	}

	var lastTrade time.Time
	trades, err := store.LoadTradeHistory()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return true, "trade history unreadable"
	case len(trades) > 0:
		last := trades[len(trades)-1]
		lastTrade = last.ExitTime
		if lastTrade.IsZero() {
			lastTrade = last.EntryTime
		}
	}

	latest := lastTrade
	if markedAt.After(latest) {
		latest = markedAt
	}
	if latest.IsZero() {
		return true, "no trade history"
	}
	if age := now.Sub(latest); age >= staleAfter {
		return true, fmt.Sprintf("no trades in last %d days", int(age.Hours()/24))
	}
	return false, "recent activity"
}

// ProbeRequired checks the executor's own store
func (e *Executor) ProbeRequired() (bool, string) {
	if e.store == nil {
		return false, "no state store"
	}
	return ProbeRequired(e.store, e.now(), e.cfg.Probe.StaleAfter)
}

// RunSafetyProbe places the minimal risk trade in dir at price and writes the
// first run marker once an order is in. A failed probe leaves the marker
// absent so the next signal tries again.
func (e *Executor) RunSafetyProbe(ctx context.Context, symbol string, dir models.Direction, price float64) (*models.OpenPosition, error) {
	if dir != models.Long && dir != models.Short {
		return nil, fmt.Errorf("%w: probe needs a direction", ErrNotActionable)
	}
	if err := e.risk.Check(); err != nil {
		return nil, err
	}

	plan := e.cfg.Probe.Plan(dir, price, e.risk.Balance())
	e.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(dir)).
		Float64("size", plan.Size).
		Float64("stop_loss", plan.StopLoss).
		Msg("Executing safety probe")

	pos, err := e.open(ctx, symbol, dir, price, plan.StopLoss, plan.TP1, plan.TP2, plan.Size, e.cfg.Probe.RiskPct)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.WriteMarker(e.now()); err != nil {
			e.logger.Error().Err(err).Msg("Failed to write first run marker")
		}
	}
	return pos, nil
}
