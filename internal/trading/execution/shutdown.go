package execution

import (
	"context"
	"errors"
	"fmt"
)

// ErrShutdownTimeout means open orders could not be cancelled in time
var ErrShutdownTimeout = errors.New("shutdown timed out cancelling open orders")

// Shutdown cancels every open order within the configured timeout, then
// saves open positions and any trades that failed to persist, and finally
// closes the exchange. On timeout the remaining steps are skipped and
// ErrShutdownTimeout is returned.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.logger.Info().Dur("timeout", e.cfg.ShutdownTimeout).Msg("Initiating graceful shutdown")

	cctx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.cancelOpenOrders(cctx)
	}()

	select {
	case <-done:
	case <-cctx.Done():
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		e.logger.Error().Msg("Timeout cancelling pending orders")
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, e.cfg.ShutdownTimeout)
	}

	e.mu.Lock()
	e.savePositionsLocked()
	if len(e.unsaved) > 0 && e.store != nil {
		if err := e.store.AppendTrades(e.unsaved...); err != nil {
			e.logger.Error().Err(err).Int("trades", len(e.unsaved)).Msg("Failed to flush trade history")
		} else {
			e.unsaved = nil
		}
	}
	e.mu.Unlock()

	if err := e.exchange.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("Error closing exchange")
	} else {
		e.logger.Info().Msg("Exchange connection closed")
	}

	e.logger.Info().Msg("Graceful shutdown complete")
	return nil
}

// cancelOpenOrders cancels what the exchange reports as open; individual
// failures are logged and skipped
func (e *Executor) cancelOpenOrders(ctx context.Context) {
	orders, err := e.exchange.FetchOpenOrders(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Error fetching open orders")
		return
	}
	e.logger.Info().Int("orders", len(orders)).Msg("Cancelling pending orders")

	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		if err := e.exchange.CancelOrder(ctx, o.ID, o.Symbol); err != nil {
			e.logger.Warn().Err(err).Str("order_id", o.ID).Msg("Failed to cancel order")
			continue
		}
		e.logger.Info().Str("order_id", o.ID).Msg("Cancelled order")
	}
}
