package models

import (
	"context"
	"time"
)

// CandleSource provides historical candles for one instrument and timeframe
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// Exchange is the collaborator contract used by the execution engine.
// Every call may fail and is treated as retryable I/O.
type Exchange interface {
	CandleSource
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	FetchOpenOrders(ctx context.Context) ([]Order, error)
	Close() error
}

// EventKind is a trade lifecycle event announced to the notification channel
type EventKind string

const (
	EventEntry        EventKind = "entry"
	EventPartialClose EventKind = "partial_close"
	EventFullClose    EventKind = "full_close"
	EventDailySummary EventKind = "daily_summary"
	EventError        EventKind = "error"
)

// Event is a fire-and-forget lifecycle notification
type Event struct {
	Kind      EventKind
	Symbol    string
	Direction Direction
	Price     float64
	StopLoss  float64
	TP1       float64
	TP2       float64
	Size      float64
	RiskPct   float64
	PnL       float64
	Reason    string
	Summary   *DailySummary
	Timestamp time.Time
}

// Notifier accepts lifecycle events; implementations must not block trading logic
type Notifier interface {
	Notify(ev Event)
}
