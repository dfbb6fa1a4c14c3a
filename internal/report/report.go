package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/HydraX/models"
)

// Report aggregates closed trades
type Report struct {
	TotalTrades          int
	Wins                 int
	Losses               int
	Breakeven            int
	WinRate              float64 // percent
	TotalPnL             float64
	GrossProfit          float64
	GrossLoss            float64 // positive
	ProfitFactor         float64 // +Inf when there are no losses but some profit
	AverageWin           float64
	AverageLoss          float64 // positive
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	MaxDrawdown          float64 // absolute
	MaxDrawdownPct       float64
	SharpeRatio          float64 // per trade, not annualized
	EquityCurve          []float64
	ByReason             map[string]int
	MonthlyPnL           map[string]float64
	From, To             time.Time
}

// Build computes the report for trades against a starting balance.
// Trades are ordered by exit time first.
func Build(trades []models.TradeRecord, startingBalance float64) Report {
	r := Report{
		ByReason:   make(map[string]int),
		MonthlyPnL: make(map[string]float64),
	}
	if len(trades) == 0 {
		return r
	}

	sorted := make([]models.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ExitTime.Before(sorted[j].ExitTime) })

	r.TotalTrades = len(sorted)
	r.From = sorted[0].ExitTime
	r.To = sorted[len(sorted)-1].ExitTime

	total := decimal.Zero
	profit := decimal.Zero
	loss := decimal.Zero
	monthly := make(map[string]decimal.Decimal)
	returns := make([]float64, 0, len(sorted))

	equity := decimal.NewFromFloat(startingBalance)
	r.EquityCurve = append(r.EquityCurve, startingBalance)

	winStreak, lossStreak := 0, 0
	for _, t := range sorted {
		pnl := decimal.NewFromFloat(t.PnL)
		total = total.Add(pnl)
		month := t.ExitTime.UTC().Format("2006-01")
		monthly[month] = monthly[month].Add(pnl)
		r.ByReason[t.ExitReason]++

		if eq := equity.InexactFloat64(); eq > 0 {
			returns = append(returns, t.PnL/eq)
		}
		equity = equity.Add(pnl)
		r.EquityCurve = append(r.EquityCurve, equity.InexactFloat64())

		switch {
		case t.PnL > 0:
			r.Wins++
			profit = profit.Add(pnl)
			winStreak++
			lossStreak = 0
		case t.PnL < 0:
			r.Losses++
			loss = loss.Sub(pnl)
			lossStreak++
			winStreak = 0
		default:
			r.Breakeven++
		}
		r.MaxConsecutiveWins = max(r.MaxConsecutiveWins, winStreak)
		r.MaxConsecutiveLosses = max(r.MaxConsecutiveLosses, lossStreak)
	}

	r.TotalPnL = total.InexactFloat64()
	r.GrossProfit = profit.InexactFloat64()
	r.GrossLoss = loss.InexactFloat64()
	r.WinRate = float64(r.Wins) / float64(r.TotalTrades) * 100
	if r.Wins > 0 {
		r.AverageWin = profit.Div(decimal.NewFromInt(int64(r.Wins))).InexactFloat64()
	}
	if r.Losses > 0 {
		r.AverageLoss = loss.Div(decimal.NewFromInt(int64(r.Losses))).InexactFloat64()
	}
	switch {
	case loss.IsPositive():
		r.ProfitFactor = profit.Div(loss).InexactFloat64()
	case profit.IsPositive():
		r.ProfitFactor = math.Inf(1)
	}
	for m, v := range monthly {
		r.MonthlyPnL[m] = v.InexactFloat64()
	}

	r.MaxDrawdown, r.MaxDrawdownPct = drawdown(r.EquityCurve)
	r.SharpeRatio = sharpe(returns)
	return r
}

// drawdown returns the largest peak-to-trough fall of the curve
func drawdown(curve []float64) (abs, pct float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0]
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if d := peak - eq; d > abs {
			abs = d
		}
		if peak > 0 {
			pct = math.Max(pct, (peak-eq)/peak*100)
		}
	}
	return abs, pct
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(sq / float64(len(returns)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd
}

// Print writes a human readable report
func (r Report) Print(w io.Writer) {
	if r.TotalTrades == 0 {
		fmt.Fprintln(w, "No trades recorded.")
		return
	}

	fmt.Fprintf(w, "=== Trade History Report ===\n")
	fmt.Fprintf(w, "Period:                %s .. %s\n", r.From.UTC().Format(time.RFC3339), r.To.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Total trades:          %d (wins %d, losses %d, breakeven %d)\n", r.TotalTrades, r.Wins, r.Losses, r.Breakeven)
	fmt.Fprintf(w, "Win rate:              %.2f%%\n", r.WinRate)
	fmt.Fprintf(w, "Total PnL:             %s\n", money(r.TotalPnL))
	fmt.Fprintf(w, "Gross profit / loss:   %s / %s\n", money(r.GrossProfit), money(r.GrossLoss))
	if math.IsInf(r.ProfitFactor, 1) {
		fmt.Fprintf(w, "Profit factor:         inf\n")
	} else {
		fmt.Fprintf(w, "Profit factor:         %.2f\n", r.ProfitFactor)
	}
	fmt.Fprintf(w, "Average win / loss:    %s / %s\n", money(r.AverageWin), money(r.AverageLoss))
	fmt.Fprintf(w, "Max consecutive:       %d wins, %d losses\n", r.MaxConsecutiveWins, r.MaxConsecutiveLosses)
	fmt.Fprintf(w, "Max drawdown:          %s (%.2f%%)\n", money(r.MaxDrawdown), r.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe (per trade):    %.3f\n", r.SharpeRatio)

	fmt.Fprintf(w, "\nExit reasons:\n")
	for _, k := range sortedKeys(r.ByReason) {
		fmt.Fprintf(w, "  %-16s %d\n", k, r.ByReason[k])
	}
	fmt.Fprintf(w, "\nMonthly PnL:\n")
	for _, k := range sortedKeys(r.MonthlyPnL) {
		fmt.Fprintf(w, "  %s  %s\n", k, money(r.MonthlyPnL[k]))
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
