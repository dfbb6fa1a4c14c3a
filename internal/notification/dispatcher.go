package notification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/models"
)

// DefaultBuffer is the number of queued events before new ones are dropped
const DefaultBuffer = 64

// Sender delivers one rendered message
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher is a models.Notifier that queues events and sends them from a
// single background goroutine. Notify never blocks; a full queue drops the event.
type Dispatcher struct {
	sender  Sender
	events  chan models.Event
	done    chan struct{}
	dropped atomic.Int64
	logger  zerolog.Logger

	mu      sync.Mutex
	closed  bool
	started bool
}

// NewDispatcher creates a dispatcher; call Start before Notify is useful
func NewDispatcher(sender Sender, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		sender: sender,
		events: make(chan models.Event, buffer),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "notifier").Logger(),
	}
}

// Start launches the send loop
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for ev := range d.events {
		if err := d.sender.Send(ctx, Format(ev)); err != nil {
			d.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Str("symbol", ev.Symbol).Msg("Notification not delivered")
		}
	}
}

// Notify queues ev. It is safe to call after Close; the event is dropped.
func (d *Dispatcher) Notify(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Warn().Str("kind", string(ev.Kind)).Msg("Notification queue full, event dropped")
	}
}

// Dropped returns how many events were discarded on a full queue
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Close stops accepting events and waits until the queue is drained
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	started := d.started
	d.mu.Unlock()

	if started {
		<-d.done
	}
}
