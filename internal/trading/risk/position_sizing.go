package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// SizePosition returns riskAmount / |entry - stopLoss| where riskAmount is
// balance * riskPercent / 100. The result is raised to minLot and rounded to
// precision decimals. Zero when entry equals stop loss.
func SizePosition(balance, riskPercent, entry, stopLoss, minLot float64, precision int32) float64 {
	distance := math.Abs(entry - stopLoss)
	if distance == 0 || math.IsNaN(distance) {
		return 0
	}

	riskAmount := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(riskPercent)).
		Div(decimal.NewFromInt(100))
	size := riskAmount.Div(decimal.NewFromFloat(distance))

	if floor := decimal.NewFromFloat(minLot); size.LessThan(floor) {
		size = floor
	}
	return size.Round(precision).InexactFloat64()
}

// SpreadPoints converts a quote into points of 1/10000 of the bid
func SpreadPoints(bid, ask float64) float64 {
	if bid <= 0 {
		return 0
	}
	return (ask - bid) / bid * 10000
}

// SlippagePct is |actual - expected| / expected as a percentage
func SlippagePct(expected, actual float64) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Abs(actual-expected) / expected * 100
}

// PositionSize sizes a trade with the engine's balance and risk percent
func (e *Engine) PositionSize(entry, stopLoss float64) float64 {
	size := SizePosition(e.cfg.AccountBalance, e.cfg.RiskPercent, entry, stopLoss, e.cfg.MinLotSize, e.cfg.LotPrecision)
	if size == 0 {
		e.logger.Error().
			Float64("entry", entry).
			Float64("stop_loss", stopLoss).
			Msg("Entry equals stop loss, cannot size position")
		return 0
	}

	e.logger.Info().
		Float64("size", size).
		Float64("risk_amount", e.cfg.AccountBalance*e.cfg.RiskPercent/100).
		Float64("sl_distance", math.Abs(entry-stopLoss)).
		Msg("Position size calculated")
	return size
}

// SpreadOK rejects non-positive or crossed quotes and spreads at or above the ceiling
func (e *Engine) SpreadOK(bid, ask float64) (bool, float64) {
	if bid <= 0 || ask <= 0 || bid > ask {
		e.logger.Error().Float64("bid", bid).Float64("ask", ask).Msg("Invalid bid/ask")
		return false, 0
	}

	points := SpreadPoints(bid, ask)
	if points >= e.cfg.MaxSpreadPoints {
		e.logger.Warn().
			Float64("spread_points", points).
			Float64("max", e.cfg.MaxSpreadPoints).
			Msg("Spread filter rejected")
		return false, points
	}
	return true, points
}

// CheckSlippage flags fills whose slippage reaches the configured percentage.
// It never blocks trading by itself.
func (e *Engine) CheckSlippage(expected, actual float64) (bool, float64) {
	if expected <= 0 {
		return false, 0
	}
	pct := SlippagePct(expected, actual)
	if pct >= e.cfg.MaxSlippagePct {
		e.logger.Warn().
			Float64("slippage_pct", pct).
			Float64("max", e.cfg.MaxSlippagePct).
			Msg("Slippage exceeded")
		return false, pct
	}
	return true, pct
}

// ValidateFill combines the spread and slippage checks for a filled order
func (e *Engine) ValidateFill(bid, ask, expected, actual float64) (bool, string) {
	if ok, points := e.SpreadOK(bid, ask); !ok {
		return false, "spread " + decimal.NewFromFloat(points).StringFixed(2) + " points over threshold"
	}
	if ok, pct := e.CheckSlippage(expected, actual); !ok {
		return false, "slippage " + decimal.NewFromFloat(pct).StringFixed(4) + "% over threshold"
	}
	return true, ""
}
