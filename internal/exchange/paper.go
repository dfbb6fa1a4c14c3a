package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

var (
	// ErrClosed is returned by every call after Close
	ErrClosed = errors.New("exchange closed")
	// ErrNoPrice means no candle has been seen for the symbol yet
	ErrNoPrice = errors.New("no price for symbol")
	// ErrOrderNotFound is returned when cancelling an unknown order
	ErrOrderNotFound = errors.New("order not found")
)

// Config controls the simulated book
type Config struct {
	HalfSpreadPct     float64 // bid/ask offset from the last close, percent
	LimitTolerancePct float64 // limit orders within this distance of the touch fill at once
	QuoteTimeframe    models.Timeframe
}

// DefaultConfig quotes 0.002% either side of the last close
func DefaultConfig() Config {
	return Config{
		HalfSpreadPct:     0.002,
		LimitTolerancePct: 0.1,
		QuoteTimeframe:    models.M5,
	}
}

// Paper is a dry-run models.Exchange. Prices come from a CandleSource; orders
// never leave the process.
type Paper struct {
	source models.CandleSource
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	last   map[string]float64
	open   map[string]models.Order
	closed bool
}

// NewPaper wraps source in a simulated exchange
func NewPaper(source models.CandleSource, cfg Config) *Paper {
	def := DefaultConfig()
	if cfg.HalfSpreadPct <= 0 {
		cfg.HalfSpreadPct = def.HalfSpreadPct
	}
	if cfg.LimitTolerancePct <= 0 {
		cfg.LimitTolerancePct = def.LimitTolerancePct
	}
	if cfg.QuoteTimeframe == "" {
		cfg.QuoteTimeframe = def.QuoteTimeframe
	}
	return &Paper{
		source: source,
		cfg:    cfg,
		now:    time.Now,
		logger: log.With().Str("component", "paper_exchange").Logger(),
		last:   make(map[string]float64),
		open:   make(map[string]models.Order),
	}
}

// FetchCandles delegates to the source. Candles of the quote timeframe mark
// the symbol to their last close; other timeframes only seed an unknown price.
func (p *Paper) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	candles, err := p.source.FetchCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if n := len(candles); n > 0 {
		p.mu.Lock()
		_, known := p.last[symbol]
		p.mu.Unlock()
		if tf == p.cfg.QuoteTimeframe || !known {
			p.mark(symbol, candles[n-1].Close)
		}
	}
	return candles, nil
}

// FetchTicker quotes around the last seen close, fetching one candle if needed
func (p *Paper) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	if err := p.check(); err != nil {
		return models.Ticker{}, err
	}

	p.mu.Lock()
	price, ok := p.last[symbol]
	p.mu.Unlock()
	if !ok {
		if _, err := p.FetchCandles(ctx, symbol, p.cfg.QuoteTimeframe, 1); err != nil {
			return models.Ticker{}, err
		}
		p.mu.Lock()
		price, ok = p.last[symbol]
		p.mu.Unlock()
		if !ok {
			return models.Ticker{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
		}
	}
	return p.quote(symbol, price), nil
}

func (p *Paper) quote(symbol string, price float64) models.Ticker {
	half := price * p.cfg.HalfSpreadPct / 100
	return models.Ticker{
		Symbol:    symbol,
		Bid:       price - half,
		Ask:       price + half,
		Last:      price,
		Timestamp: p.now().UTC(),
	}
}

// CreateOrder fills market orders at the touch. Limit orders fill at their
// price when within LimitTolerancePct of the touch and rest otherwise.
func (p *Paper) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) {
		return nil, fmt.Errorf("invalid amount %v", req.Amount)
	}
	if req.Side != models.Long && req.Side != models.Short {
		return nil, fmt.Errorf("invalid side %q", req.Side)
	}

	t, err := p.FetchTicker(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	order := models.Order{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Amount:        req.Amount,
		Price:         req.Price,
		Status:        models.OrderOpen,
		CreatedAt:     p.now().UTC(),
	}

	touch := t.Ask
	if req.Side == models.Short {
		touch = t.Bid
	}

	switch {
	case req.Type == models.OrderMarket:
		order.FillPrice = touch
		order.Status = models.OrderFilled
	case p.marketable(req.Side, req.Price, touch):
		order.FillPrice = req.Price
		order.Status = models.OrderFilled
	default:
		p.mu.Lock()
		p.open[order.ID] = order
		p.mu.Unlock()
	}

	p.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("type", string(order.Type)).
		Float64("amount", order.Amount).
		Float64("fill", order.FillPrice).
		Str("status", order.Status).
		Msg("Paper order")
	return &order, nil
}

// marketable reports whether a limit at price fills against touch
func (p *Paper) marketable(side models.Direction, price, touch float64) bool {
	tol := touch * p.cfg.LimitTolerancePct / 100
	if side == models.Short {
		return price <= touch+tol
	}
	return price >= touch-tol
}

// CancelOrder removes a resting order
func (p *Paper) CancelOrder(ctx context.Context, id, symbol string) error {
	if err := p.check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.open[id]; !ok || o.Symbol != symbol {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	delete(p.open, id)
	return nil
}

// FetchOpenOrders lists resting orders
func (p *Paper) FetchOpenOrders(ctx context.Context) ([]models.Order, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Order, 0, len(p.open))
	for _, o := range p.open {
		out = append(out, o)
	}
	return out, nil
}

// Close releases the exchange; later calls fail with ErrClosed
func (p *Paper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	return nil
}

func (p *Paper) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// mark records a new last price and fills resting orders it crosses
func (p *Paper) mark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[symbol] = price

	t := p.quote(symbol, price)
	for id, o := range p.open {
		if o.Symbol != symbol {
			continue
		}
		filled := (o.Side == models.Long && t.Ask <= o.Price) || (o.Side == models.Short && t.Bid >= o.Price)
		if filled {
			delete(p.open, id)
			p.logger.Info().Str("order_id", id).Float64("price", o.Price).Msg("Resting paper order filled")
		}
	}
}
