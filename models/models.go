package models

import (
	"time"
)

// Timeframe identifies a candle bucket size
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D"
)

// Candle represents a single OHLCV price candle
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timeframe Timeframe `json:"timeframe"`
}

// Direction of a trade signal or position
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	None  Direction = "NONE"
)

// Opposite returns the reverse direction; NONE stays NONE
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return None
	}
}

// ZoneKind distinguishes support from resistance levels
type ZoneKind string

const (
	Support    ZoneKind = "support"
	Resistance ZoneKind = "resistance"
)

// Zone is a clustered price level built from swing points
type Zone struct {
	Price    float64  `json:"price"`
	Kind     ZoneKind `json:"kind"`
	Touches  int      `json:"touches"`
	Strength float64  `json:"strength"` // 0-1
}

// Skip reasons reported by the signal orchestrator
const (
	SkipInsufficientData = "insufficient_data"
	SkipSpreadTooWide    = "spread_too_wide"
	SkipNoBreakout       = "no_breakout"
	SkipStrengthTooLow   = "strength_too_low"
)

// SignalDecision is the output of one orchestration pass for one instrument
type SignalDecision struct {
	Symbol            string         `json:"symbol"`
	Direction         Direction      `json:"direction"`
	EntryPrice        float64        `json:"entry_price"`
	StopLoss          float64        `json:"stop_loss"`
	TP1               float64        `json:"tp1"`
	TP2               float64        `json:"tp2"`
	Strength          float64        `json:"signal_strength"`
	ConfirmationCount int            `json:"confirmation_count"`
	ComponentScores   map[string]any `json:"component_scores"`
	SkipReason        string         `json:"skip_reason,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// Actionable reports whether the decision passed every orchestrator gate
func (s SignalDecision) Actionable() bool {
	return s.Direction != None && s.Direction != "" && s.SkipReason == ""
}

// RiskState holds the per-day risk counters; persisted as daily_pnl.json
type RiskState struct {
	Date              string  `json:"date"`
	CumulativePnL     float64 `json:"cumulative_pnl"`
	TradesToday       int     `json:"trades_today"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
}

// OpenPosition is a live trade; the list is persisted as open_positions.json
type OpenPosition struct {
	ID           string    `json:"id,omitempty"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	PositionSize float64   `json:"position_size"`
	SL           float64   `json:"sl"`
	TP           float64   `json:"tp"`
	TP1          float64   `json:"tp1"`
	TP2          float64   `json:"tp2"`
	EntryTime    time.Time `json:"entry_time"`
	RiskPct      float64   `json:"risk_pct"`

	// Partial close bookkeeping
	InitialSize float64 `json:"initial_size,omitempty"`
	TP1Size     float64 `json:"tp1_size,omitempty"`
	TP2Size     float64 `json:"tp2_size,omitempty"`
	TP1Done     bool    `json:"tp1_done,omitempty"`
	TP2Done     bool    `json:"tp2_done,omitempty"`
}

// UnrealizedPnL returns the mark-to-market PnL at the given price
func (p OpenPosition) UnrealizedPnL(price float64) float64 {
	if p.Direction == Short {
		return (p.EntryPrice - price) * p.PositionSize
	}
	return (price - p.EntryPrice) * p.PositionSize
}

// Exit reasons stored in trade history
const (
	ExitStopLoss    = "stop_loss"
	ExitTP1         = "tp1"
	ExitTP2         = "tp2"
	ExitTrailing    = "trailing_exit"
	ExitManual      = "manual"
	ExitSafetyProbe = "safety_probe"
	ExitShutdown    = "shutdown"
)

// TradeRecord is one closed (or partially closed) trade; trade_history.json is append-only
type TradeRecord struct {
	EntryTime  time.Time `json:"entry_time"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	ExitReason string    `json:"exit_reason"`
	ExitTime   time.Time `json:"exit_time"`
}

// Ticker is the current top of book for an instrument
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}

// SpreadPoints returns the spread in price-increment points (1 point = 1/10000 of bid)
func (t Ticker) SpreadPoints() float64 {
	if t.Bid <= 0 {
		return 0
	}
	return (t.Ask - t.Bid) / t.Bid * 10000
}

// OrderType of an order request
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderRequest is what the execution engine submits to the exchange
type OrderRequest struct {
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          Direction `json:"side"`
	Type          OrderType `json:"type"`
	Amount        float64   `json:"amount"`
	Price         float64   `json:"price"`
	StopLoss      float64   `json:"stop_loss"`
	TP1           float64   `json:"tp1"`
	TP2           float64   `json:"tp2"`
	ReduceOnly    bool      `json:"reduce_only,omitempty"`
}

// Order status values
const (
	OrderOpen     = "open"
	OrderFilled   = "filled"
	OrderCanceled = "canceled"
)

// Order is the exchange's view of a submitted order
type Order struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          Direction `json:"side"`
	Type          OrderType `json:"type"`
	Amount        float64   `json:"amount"`
	Price         float64   `json:"price"`
	FillPrice     float64   `json:"fill_price"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// DailySummary is the dashboard-facing snapshot written to daily_summary_state.json
type DailySummary struct {
	Date              string    `json:"date"`
	Balance           float64   `json:"balance"`
	Equity            float64   `json:"equity"`
	DrawdownPct       float64   `json:"drawdown_pct"`
	DailyPnL          float64   `json:"daily_pnl"`
	MarginUsedPct     float64   `json:"margin_used_pct"`
	MarginRatioPct    float64   `json:"margin_ratio_pct"`
	Status            string    `json:"status"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	DailyTradeCount   int       `json:"daily_trade_count"`
	ShutdownReason    string    `json:"shutdown_reason"`
	LastUpdate        time.Time `json:"last_update"`
	PeakEquity        float64   `json:"peak_equity,omitempty"`
}

// Bot status values for DailySummary.Status
const (
	StatusRunning = "running"
	StatusHalted  = "halted"
	StatusStopped = "stopped"
)
