package notification

import (
	"fmt"
	"strings"

	"github.com/Alias1177/HydraX/models"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Format renders an event as a Telegram Markdown message
func Format(ev models.Event) string {
	var b strings.Builder
	ts := ev.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")

	switch ev.Kind {
	case models.EventEntry:
		arrow := "🟢"
		if ev.Direction == models.Short {
			arrow = "🔴"
		}
		fmt.Fprintf(&b, "🚀 *TRADE ENTRY ALERT*\n%s\n", divider)
		fmt.Fprintf(&b, "*Symbol:* `%s`\n", ev.Symbol)
		fmt.Fprintf(&b, "*Direction:* %s *%s*\n", arrow, ev.Direction)
		fmt.Fprintf(&b, "*Entry Price:* `%.2f`\n", ev.Price)
		fmt.Fprintf(&b, "*Stop Loss:* ❌ `%.2f`\n", ev.StopLoss)
		fmt.Fprintf(&b, "*Take Profit 1:* 🎯 `%.2f`\n", ev.TP1)
		fmt.Fprintf(&b, "*Take Profit 2:* 🎯 `%.2f`\n", ev.TP2)
		fmt.Fprintf(&b, "*Position Size:* `%.4f`\n", ev.Size)
		fmt.Fprintf(&b, "*Risk:* `%.2f%%`\n", ev.RiskPct)

	case models.EventPartialClose:
		fmt.Fprintf(&b, "🎯 *PARTIAL CLOSE ALERT*\n%s\n", divider)
		fmt.Fprintf(&b, "*Symbol:* `%s`\n", ev.Symbol)
		fmt.Fprintf(&b, "*Level:* `%s`\n", strings.ToUpper(ev.Reason))
		fmt.Fprintf(&b, "*Exit Price:* `%.2f`\n", ev.Price)
		fmt.Fprintf(&b, "*Amount Closed:* `%.4f`\n", ev.Size)
		fmt.Fprintf(&b, "*PnL:* %s `%+.2f`\n", pnlMark(ev.PnL), ev.PnL)

	case models.EventFullClose:
		fmt.Fprintf(&b, "✅ *TRADE CLOSED*\n%s\n", divider)
		fmt.Fprintf(&b, "*Symbol:* `%s`\n", ev.Symbol)
		fmt.Fprintf(&b, "*Exit Reason:* `%s`\n", ev.Reason)
		fmt.Fprintf(&b, "*Exit Price:* `%.2f`\n", ev.Price)
		fmt.Fprintf(&b, "*Final PnL:* %s `%+.2f`\n", pnlMark(ev.PnL), ev.PnL)

	case models.EventDailySummary:
		fmt.Fprintf(&b, "📊 *DAILY SUMMARY*\n%s\n", divider)
		if s := ev.Summary; s != nil {
			fmt.Fprintf(&b, "*Date:* `%s`\n", s.Date)
			fmt.Fprintf(&b, "*Balance:* `%.2f`\n", s.Balance)
			fmt.Fprintf(&b, "*Daily PnL:* %s `%+.2f`\n", pnlMark(s.DailyPnL), s.DailyPnL)
			fmt.Fprintf(&b, "*Trades:* `%d`\n", s.DailyTradeCount)
			fmt.Fprintf(&b, "*Drawdown:* `%.2f%%`\n", s.DrawdownPct)
			fmt.Fprintf(&b, "*Status:* `%s`\n", s.Status)
			if s.ShutdownReason != "" {
				fmt.Fprintf(&b, "*Halted:* `%s`\n", s.ShutdownReason)
			}
		}

	default:
		fmt.Fprintf(&b, "⚠️ *ERROR*\n%s\n", divider)
		if ev.Symbol != "" {
			fmt.Fprintf(&b, "*Symbol:* `%s`\n", ev.Symbol)
		}
		fmt.Fprintf(&b, "*Detail:* `%s`\n", ev.Reason)
	}

	fmt.Fprintf(&b, "*Time:* `%s`", ts)
	return b.String()
}

func pnlMark(pnl float64) string {
	if pnl >= 0 {
		return "📈"
	}
	return "📉"
}
