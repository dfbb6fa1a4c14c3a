package execution

import "math/rand"

// Partial close bands, as fractions of the initial size
const (
	TP1MinPct = 0.28
	TP1MaxPct = 0.35
	TP2MinPct = 0.38
	TP2MaxPct = 0.42
)

// PartialPlan splits a position into two fixed targets and a trailed runner
type PartialPlan struct {
	TP1Pct    float64 `json:"tp1_pct"`
	TP2Pct    float64 `json:"tp2_pct"`
	RunnerPct float64 `json:"runner_pct"`

	TP1Size    float64 `json:"tp1_size"`
	TP2Size    float64 `json:"tp2_size"`
	RunnerSize float64 `json:"runner_size"`
}

// PlanPartialClose draws the TP1 and TP2 shares uniformly from their bands;
// the runner takes what is left so the three always sum to 1
func PlanPartialClose(rnd *rand.Rand, size float64) PartialPlan {
	tp1 := TP1MinPct + rnd.Float64()*(TP1MaxPct-TP1MinPct)
	tp2 := TP2MinPct + rnd.Float64()*(TP2MaxPct-TP2MinPct)
	runner := 1 - tp1 - tp2

	return PartialPlan{
		TP1Pct:     tp1,
		TP2Pct:     tp2,
		RunnerPct:  runner,
		TP1Size:    size * tp1,
		TP2Size:    size * tp2,
		RunnerSize: size * runner,
	}
}
