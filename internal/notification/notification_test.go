package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/internal/retry"
	"github.com/Alias1177/HydraX/models"
)

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

type captureSender struct {
	mu    sync.Mutex
	texts []string
	gate  chan struct{}
	err   error
}

func (s *captureSender) Send(ctx context.Context, text string) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   models.Event
		want []string
	}{
		{
			name: "entry",
			ev: models.Event{Kind: models.EventEntry, Symbol: "BTCUSDT", Direction: models.Short,
				Price: 65000, StopLoss: 65500, TP1: 64250, TP2: 63750, Size: 0.35, RiskPct: 1.75, Timestamp: ts},
			want: []string{"TRADE ENTRY", "`BTCUSDT`", "🔴 *SHORT*", "`65000.00`", "`0.3500`", "`1.75%`", "2024-06-01 09:30:00 UTC"},
		},
		{
			name: "partial close",
			ev:   models.Event{Kind: models.EventPartialClose, Symbol: "XAUTUSDT", Reason: models.ExitTP1, Price: 2410, Size: 0.3, PnL: 12.5, Timestamp: ts},
			want: []string{"PARTIAL CLOSE", "`TP1`", "`+12.50`", "📈"},
		},
		{
			name: "full close loss",
			ev:   models.Event{Kind: models.EventFullClose, Symbol: "BTCUSDT", Reason: models.ExitStopLoss, PnL: -20, Timestamp: ts},
			want: []string{"TRADE CLOSED", "`stop_loss`", "`-20.00`", "📉"},
		},
		{
			name: "daily summary",
			ev: models.Event{Kind: models.EventDailySummary, Timestamp: ts, Summary: &models.DailySummary{
				Date: "2024-06-01", Balance: 10100, DailyPnL: 100, DailyTradeCount: 4, Status: models.StatusHalted,
				ShutdownReason: "consecutive loss limit reached: 2 >= 2",
			}},
			want: []string{"DAILY SUMMARY", "`2024-06-01`", "`10100.00`", "`4`", "`halted`", "consecutive loss"},
		},
		{
			name: "error",
			ev:   models.Event{Kind: models.EventError, Symbol: "BTCUSDT", Reason: "order submission failed", Timestamp: ts},
			want: []string{"ERROR", "order submission failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.ev)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, 8)
	d.Start(context.Background())

	d.Notify(models.Event{Kind: models.EventEntry, Symbol: "A"})
	d.Notify(models.Event{Kind: models.EventFullClose, Symbol: "B"})
	d.Close()

	require.Len(t, sender.texts, 2)
	assert.Contains(t, sender.texts[0], "`A`")
	assert.Contains(t, sender.texts[1], "`B`")

	// after Close events are ignored
	d.Notify(models.Event{Kind: models.EventEntry})
	assert.Len(t, sender.texts, 2)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sender := &captureSender{gate: make(chan struct{})}
	d := NewDispatcher(sender, 1)
	d.Start(context.Background())

	// first event is taken by the loop and blocks on the gate, second fills
	// the queue, the rest are dropped without blocking the caller
	d.Notify(models.Event{Kind: models.EventEntry})
	require.Eventually(t, func() bool { return len(d.events) == 0 }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Notify(models.Event{Kind: models.EventEntry})
	}
	assert.Equal(t, int64(4), d.Dropped())

	close(sender.gate)
	d.Close()
	assert.Len(t, sender.texts, 2)
}

func TestDispatcher_SenderErrorDoesNotStopLoop(t *testing.T) {
	sender := &captureSender{err: errors.New("chat not found")}
	d := NewDispatcher(sender, 4)
	d.Start(context.Background())
	d.Notify(models.Event{Kind: models.EventError})
	d.Notify(models.Event{Kind: models.EventError})
	d.Close()
	assert.Len(t, sender.texts, 2)
}

const getMeResponse = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"hydra","username":"hydra_bot"}}`
const sentResponse = `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"x"}}`

func telegramServer(t *testing.T, responses ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(getMeResponse))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.FormValue("chat_id"))
			i := int(sends.Add(1)) - 1
			if i >= len(responses) {
				i = len(responses) - 1
			}
			_, _ = w.Write([]byte(responses[i]))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sends
}

func newTestSender(t *testing.T, srv *httptest.Server) *TelegramSender {
	t.Helper()
	s, err := NewTelegramSender("test-token", 42,
		WithEndpoint(srv.URL+"/bot%s/%s"),
		WithRetry(retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
			retry.WithTimer(&instantTimer{})),
	)
	require.NoError(t, err)
	return s
}

func TestTelegramSender(t *testing.T) {
	flaky := `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
	badRequest := `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`

	tests := []struct {
		name      string
		responses []string
		wantErr   bool
		wantSends int32
	}{
		{name: "first try", responses: []string{sentResponse}, wantSends: 1},
		{name: "transient then ok", responses: []string{flaky, sentResponse}, wantSends: 2},
		{name: "always failing", responses: []string{flaky}, wantErr: true, wantSends: 3},
		{name: "bad request not retried", responses: []string{badRequest}, wantErr: true, wantSends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sends := telegramServer(t, tt.responses...)
			s := newTestSender(t, srv)

			err := s.Send(context.Background(), "*hello*")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSends, sends.Load())
		})
	}
}
