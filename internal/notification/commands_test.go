package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/HydraX/models"
)

type fakeState struct {
	summary   models.DailySummary
	present   bool
	positions []models.OpenPosition
	trades    []models.TradeRecord
	tradesErr error
}

func (f *fakeState) LoadDailySummary() (models.DailySummary, bool)   { return f.summary, f.present }
func (f *fakeState) LoadOpenPositions() []models.OpenPosition        { return f.positions }
func (f *fakeState) LoadTradeHistory() ([]models.TradeRecord, error) { return f.trades, f.tradesErr }

type fakeSignals map[string][]models.SignalDecision

func (f fakeSignals) Recent(_ context.Context, symbol string, _ int64) ([]models.SignalDecision, error) {
	if symbol == "BROKEN" {
		return nil, errors.New("redis down")
	}
	return f[symbol], nil
}

func TestCommands_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	full := &fakeState{
		present: true,
		summary: models.DailySummary{Date: "2024-06-03", Balance: 10050, Equity: 10070, DailyPnL: 50,
			Status: models.StatusHalted, ShutdownReason: "daily loss limit", LastUpdate: ts},
		positions: []models.OpenPosition{
			{Symbol: "BTCUSDT", Direction: models.Long, EntryPrice: 100, CurrentPrice: 102, PositionSize: 2, SL: 98, TP1: 103, TP2: 105},
		},
		trades: []models.TradeRecord{
			{Symbol: "BTCUSDT", Direction: models.Long, PnL: 30, ExitReason: "tp1", ExitTime: ts},
			{Symbol: "XAUTUSDT", Direction: models.Short, PnL: -10, ExitReason: "stop_loss", ExitTime: ts.Add(time.Hour)},
		},
	}
	signals := fakeSignals{
		"BTCUSDT":  {{Symbol: "BTCUSDT", Direction: models.Long, Strength: 0.82, ConfirmationCount: 3, Timestamp: ts}},
		"XAUTUSDT": {{Symbol: "XAUTUSDT", Direction: models.None, SkipReason: "spread too wide", Timestamp: ts}},
	}
	cmds := NewCommands(full, signals, []string{"BTCUSDT", "XAUTUSDT", "ETHUSDT", "BROKEN"}, 10000)
	empty := NewCommands(&fakeState{tradesErr: errors.New("missing")}, nil, nil, 10000)

	tests := []struct {
		name    string
		cmds    *Commands
		command string
		want    []string
	}{
		{"help", cmds, "help", []string{"/status", "/positions", "/history", "/signals"}},
		{"start is help", cmds, "start", []string{"operator commands"}},
		{"status", cmds, "status", []string{"`10050.00`", "`10070.00`", "📈 `+50.00`", "`halted`", "daily loss limit"}},
		{"status case insensitive", cmds, "STATUS", []string{"*STATUS*"}},
		{"positions", cmds, "positions", []string{"(1)", "`BTCUSDT` *LONG*", "`2.0000`", "uPnL 📈 `+4.00`"}},
		{"history", cmds, "history", []string{"`2` (W `1` / L `1`)", "`50.0%`", "`+20.00`", "*Last 2:*", "`stop_loss`"}},
		{"signals", cmds, "signals", []string{"`BTCUSDT` `LONG` strength `0.82` conf `3`", "`XAUTUSDT` `skip`", "`ETHUSDT` no signal yet", "`BROKEN` unavailable"}},
		{"no summary", empty, "status", []string{"No summary yet"}},
		{"no positions", empty, "positions", []string{"No open positions."}},
		{"no history", empty, "history", []string{"No closed trades yet."}},
		{"no mirror", empty, "signals", []string{"not configured"}},
		{"unknown", cmds, "buy", []string{"Unknown command"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmds.Handle(context.Background(), tt.command)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestCommands_HistoryNewestFirst(t *testing.T) {
	base := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	var trades []models.TradeRecord
	for i := 0; i < 8; i++ {
		trades = append(trades, models.TradeRecord{Symbol: "BTCUSDT", Direction: models.Long, PnL: float64(i + 1),
			ExitReason: "tp2", ExitTime: base.Add(time.Duration(i) * time.Hour)})
	}
	got := NewCommands(&fakeState{trades: trades}, nil, nil, 10000).Handle(context.Background(), "history")

	assert.Contains(t, got, "*Last 5:*")
	assert.NotContains(t, got, "`+3.00`")
	assert.Less(t, strings.Index(got, "`+8.00`"), strings.Index(got, "`+4.00`"))
}

func TestServeCommands(t *testing.T) {
	const updates = `{"ok":true,"result":[
		{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":99,"type":"private"},"text":"/status","entities":[{"type":"bot_command","offset":0,"length":7}]}},
		{"update_id":2,"message":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}},
		{"update_id":3,"message":{"message_id":3,"date":0,"chat":{"id":42,"type":"private"},"text":"/positions","entities":[{"type":"bot_command","offset":0,"length":10}]}}
	]}`

	var polls atomic.Int32
	sent := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(getMeResponse))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(updates))
				return
			}
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.FormValue("chat_id"))
			sent <- r.FormValue("text")
			_, _ = w.Write([]byte(sentResponse))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeCommands(ctx, api, 42, NewCommands(&fakeState{}, nil, nil, 10000))
	}()

	select {
	case text := <-sent:
		assert.Equal(t, "No open positions.", text)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeCommands did not stop")
	}
	assert.Empty(t, sent)
}
