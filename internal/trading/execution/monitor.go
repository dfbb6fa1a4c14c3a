package execution

import (
	"context"

	"github.com/google/uuid"

	"github.com/Alias1177/HydraX/internal/indicators"
	"github.com/Alias1177/HydraX/models"
)

// sizes below this are treated as fully closed
const dustSize = 1e-9

// reached reports whether price is at or beyond target in the trade direction
func reached(dir models.Direction, price, target float64) bool {
	if target <= 0 {
		return false
	}
	if dir == models.Short {
		return price <= target
	}
	return price >= target
}

// stopped reports whether price is at or through the stop loss
func stopped(pos models.OpenPosition, price float64) bool {
	if pos.SL <= 0 {
		return false
	}
	if pos.Direction == models.Short {
		return price >= pos.SL
	}
	return price <= pos.SL
}

// trailExit reports whether the runner should close against the trailing EMA
func trailExit(dir models.Direction, price, ema float64) bool {
	if dir == models.Short {
		return price > ema
	}
	return price < ema
}

// Monitor marks every open position of symbol to price and applies the exit
// plan: stop loss closes everything, TP1 and TP2 close their planned shares,
// and once both targets are done the runner closes when price crosses the
// trailing EMA of candles. It returns the trades realized on this call.
func (e *Executor) Monitor(ctx context.Context, symbol string, price float64, candles []models.Candle) []models.TradeRecord {
	ema, emaOK := indicators.EMA(indicators.Closes(candles), e.cfg.TrailingEMAPeriod)

	e.mu.Lock()
	var idx []int
	for i := range e.positions {
		if e.positions[i].Symbol == symbol {
			e.positions[i].CurrentPrice = price
			idx = append(idx, i)
		}
	}
	snapshot := make([]models.OpenPosition, len(e.positions))
	copy(snapshot, e.positions)
	e.mu.Unlock()

	if len(idx) == 0 {
		return nil
	}

	var realized []models.TradeRecord
	for _, i := range idx {
		pos := snapshot[i]
		switch {
		case stopped(pos, price):
			if rec, ok := e.closePart(ctx, &pos, pos.PositionSize, price, models.ExitStopLoss); ok {
				realized = append(realized, rec)
			}
		default:
			if !pos.TP1Done && reached(pos.Direction, price, pos.TP1) {
				if rec, ok := e.closePart(ctx, &pos, pos.TP1Size, price, models.ExitTP1); ok {
					pos.TP1Done = true
					realized = append(realized, rec)
				}
			}
			if pos.TP1Done && !pos.TP2Done && reached(pos.Direction, price, pos.TP2) {
				if rec, ok := e.closePart(ctx, &pos, pos.TP2Size, price, models.ExitTP2); ok {
					pos.TP2Done = true
					realized = append(realized, rec)
				}
			}
			if pos.TP1Done && pos.TP2Done && pos.PositionSize > dustSize && emaOK && trailExit(pos.Direction, price, ema) {
				if rec, ok := e.closePart(ctx, &pos, pos.PositionSize, price, models.ExitTrailing); ok {
					realized = append(realized, rec)
				}
			}
		}
		snapshot[i] = pos
	}

	e.mu.Lock()
	e.positions = e.positions[:0]
	for _, p := range snapshot {
		if p.PositionSize > dustSize {
			e.positions = append(e.positions, p)
		}
	}
	e.savePositionsLocked()
	e.mu.Unlock()

	return realized
}

// closePart sends a reduce-only market order for size and books the result.
// On failure the position is left unchanged for the next pass.
func (e *Executor) closePart(ctx context.Context, pos *models.OpenPosition, size, price float64, reason string) (models.TradeRecord, bool) {
	if size > pos.PositionSize || size <= 0 {
		size = pos.PositionSize
	}

	sub, err := e.send(ctx, models.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        pos.Symbol,
		Side:          pos.Direction.Opposite(),
		Type:          models.OrderMarket,
		Amount:        size,
		Price:         price,
		ReduceOnly:    true,
	}, Submission{})
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", pos.Symbol).Str("reason", reason).Msg("Close order failed, position kept")
		return models.TradeRecord{}, false
	}

	exit := price
	if sub.Order.FillPrice > 0 {
		exit = sub.Order.FillPrice
	}

	part := *pos
	part.PositionSize = size
	pnl := part.UnrealizedPnL(exit)
	pos.PositionSize -= size
	if pos.PositionSize < dustSize {
		pos.PositionSize = 0
	}

	rec := models.TradeRecord{
		EntryTime:  pos.EntryTime,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exit,
		PnL:        pnl,
		ExitReason: reason,
		ExitTime:   e.now().UTC(),
	}
	e.recordTrade(ctx, rec)

	kind := models.EventPartialClose
	if pos.PositionSize == 0 {
		kind = models.EventFullClose
	}
	e.logger.Info().
		Str("symbol", pos.Symbol).
		Str("reason", reason).
		Float64("size", size).
		Float64("exit", exit).
		Float64("pnl", pnl).
		Float64("remaining", pos.PositionSize).
		Msg("Position reduced")
	e.notify(models.Event{
		Kind:      kind,
		Symbol:    pos.Symbol,
		Direction: pos.Direction,
		Price:     exit,
		Size:      size,
		PnL:       pnl,
		Reason:    reason,
	})
	return rec, true
}
