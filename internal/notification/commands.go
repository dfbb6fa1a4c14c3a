package notification

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/HydraX/internal/report"
	"github.com/Alias1177/HydraX/models"
)

// StateReader is the read side of the durable state files
type StateReader interface {
	LoadDailySummary() (models.DailySummary, bool)
	LoadOpenPositions() []models.OpenPosition
	LoadTradeHistory() ([]models.TradeRecord, error)
}

// SignalReader returns recent decisions for a symbol, newest first
type SignalReader interface {
	Recent(ctx context.Context, symbol string, limit int64) ([]models.SignalDecision, error)
}

const recentTrades = 5

const helpText = "*HydraX operator commands*\n" +
	"/status - daily summary\n" +
	"/positions - open positions\n" +
	"/history - trade statistics\n" +
	"/signals - latest signal per symbol"

// Commands answers read-only operator commands from the state files.
// signals may be nil when no mirror is configured.
type Commands struct {
	state   StateReader
	signals SignalReader
	symbols []string
	balance float64
}

// NewCommands creates a command handler
func NewCommands(state StateReader, signals SignalReader, symbols []string, startingBalance float64) *Commands {
	return &Commands{state: state, signals: signals, symbols: symbols, balance: startingBalance}
}

// Handle returns the reply for a command name without the leading slash
func (c *Commands) Handle(ctx context.Context, command string) string {
	switch strings.ToLower(command) {
	case "start", "help":
		return helpText
	case "status":
		return c.status()
	case "positions":
		return c.positions()
	case "history":
		return c.history()
	case "signals":
		return c.latestSignals(ctx)
	default:
		return "Unknown command. Send /help for the list."
	}
}

func (c *Commands) status() string {
	s, ok := c.state.LoadDailySummary()
	if !ok {
		return "No summary yet, the bot has not completed a cycle."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *STATUS*\n%s\n", divider)
	fmt.Fprintf(&b, "*Date:* `%s`\n", s.Date)
	fmt.Fprintf(&b, "*Status:* `%s`\n", s.Status)
	fmt.Fprintf(&b, "*Balance:* `%.2f`\n", s.Balance)
	fmt.Fprintf(&b, "*Equity:* `%.2f`\n", s.Equity)
	fmt.Fprintf(&b, "*Daily PnL:* %s `%+.2f`\n", pnlMark(s.DailyPnL), s.DailyPnL)
	fmt.Fprintf(&b, "*Trades Today:* `%d`\n", s.DailyTradeCount)
	fmt.Fprintf(&b, "*Consecutive Losses:* `%d`\n", s.ConsecutiveLosses)
	fmt.Fprintf(&b, "*Drawdown:* `%.2f%%`\n", s.DrawdownPct)
	fmt.Fprintf(&b, "*Margin Used:* `%.2f%%`\n", s.MarginUsedPct)
	if s.ShutdownReason != "" {
		fmt.Fprintf(&b, "*Halted:* `%s`\n", s.ShutdownReason)
	}
	fmt.Fprintf(&b, "*Updated:* `%s`", s.LastUpdate.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func (c *Commands) positions() string {
	open := c.state.LoadOpenPositions()
	if len(open) == 0 {
		return "No open positions."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📂 *OPEN POSITIONS* (%d)\n%s\n", len(open), divider)
	for _, p := range open {
		mark := p.CurrentPrice
		if mark == 0 {
			mark = p.EntryPrice
		}
		pnl := p.UnrealizedPnL(mark)
		fmt.Fprintf(&b, "`%s` *%s* size `%.4f` @ `%.2f`\n", p.Symbol, p.Direction, p.PositionSize, p.EntryPrice)
		fmt.Fprintf(&b, "  SL `%.2f` TP1 `%.2f` TP2 `%.2f`\n", p.SL, p.TP1, p.TP2)
		fmt.Fprintf(&b, "  Mark `%.2f` uPnL %s `%+.2f`\n", mark, pnlMark(pnl), pnl)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) history() string {
	trades, err := c.state.LoadTradeHistory()
	if err != nil || len(trades) == 0 {
		return "No closed trades yet."
	}
	r := report.Build(trades, c.balance)

	var b strings.Builder
	fmt.Fprintf(&b, "📈 *TRADE HISTORY*\n%s\n", divider)
	fmt.Fprintf(&b, "*Trades:* `%d` (W `%d` / L `%d`)\n", r.TotalTrades, r.Wins, r.Losses)
	fmt.Fprintf(&b, "*Win Rate:* `%.1f%%`\n", r.WinRate)
	fmt.Fprintf(&b, "*Total PnL:* %s `%+.2f`\n", pnlMark(r.TotalPnL), r.TotalPnL)
	fmt.Fprintf(&b, "*Profit Factor:* `%.2f`\n", r.ProfitFactor)
	fmt.Fprintf(&b, "*Max Drawdown:* `%.2f%%`\n", r.MaxDrawdownPct)

	start := max(len(trades)-recentTrades, 0)
	fmt.Fprintf(&b, "\n*Last %d:*\n", len(trades)-start)
	for i := len(trades) - 1; i >= start; i-- {
		t := trades[i]
		fmt.Fprintf(&b, "`%s` %s %s `%+.2f` `%s`\n", t.ExitTime.UTC().Format("01-02 15:04"), t.Symbol, t.Direction, t.PnL, t.ExitReason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) latestSignals(ctx context.Context) string {
	if c.signals == nil {
		return "Signal mirror is not configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🛰 *LATEST SIGNALS*\n%s\n", divider)
	for _, sym := range c.symbols {
		recent, err := c.signals.Recent(ctx, sym, 1)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "`%s` unavailable\n", sym)
		case len(recent) == 0:
			fmt.Fprintf(&b, "`%s` no signal yet\n", sym)
		default:
			d := recent[0]
			verdict := string(d.Direction)
			if d.SkipReason != "" {
				verdict = "skip"
			}
			fmt.Fprintf(&b, "`%s` `%s` strength `%.2f` conf `%d` at `%s`\n",
				sym, verdict, d.Strength, d.ConfirmationCount, d.Timestamp.UTC().Format("15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ServeCommands polls updates until ctx is done. Only chatID is answered.
func ServeCommands(ctx context.Context, api *tgbotapi.BotAPI, chatID int64, cmds *Commands) error {
	logger := log.With().Str("component", "commands").Logger()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)
	defer api.StopReceivingUpdates()

	logger.Info().Str("username", api.Self.UserName).Msg("Listening for operator commands")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			if msg.Chat.ID != chatID {
				logger.Warn().Int64("chat_id", msg.Chat.ID).Str("command", msg.Command()).Msg("Ignoring command from unknown chat")
				continue
			}

			reply := tgbotapi.NewMessage(msg.Chat.ID, cmds.Handle(ctx, msg.Command()))
			reply.ParseMode = tgbotapi.ModeMarkdown
			if _, err := api.Send(reply); err != nil {
				logger.Error().Err(err).Str("command", msg.Command()).Msg("Failed to send reply")
			}
		}
	}
}
