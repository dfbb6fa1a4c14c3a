package pattern

import (
	"github.com/Alias1177/HydraX/models"
)

// Match is one detected pattern
type Match struct {
	Kind       Kind    `json:"pattern"`
	Confidence float64 `json:"confidence"`
}

// Result is the combined price action confirmation
type Result struct {
	Count      int     `json:"confirmation_count"`
	Score      float64 `json:"confirmation_score"`
	MinMet     bool    `json:"min_met"`
	Applicable int     `json:"applicable_patterns"`
	Patterns   []Match `json:"patterns"`
}

// Scorer evaluates all patterns against one candle series
type Scorer struct {
	minConfirmations int
}

// NewScorer creates a scorer; minConfirmations <= 0 defaults to 2
func NewScorer(minConfirmations int) *Scorer {
	if minConfirmations <= 0 {
		minConfirmations = 2
	}
	return &Scorer{minConfirmations: minConfirmations}
}

// Score runs every applicable pattern. The score is the sum of detected
// confidences divided by the number of applicable patterns, so EMA and zone
// retests only count towards the denominator when their context is given.
// This makes the scale depend on what the caller supplies.
func (s *Scorer) Score(candles []models.Candle, ctx Context) Result {
	var res Result
	var total float64

	for _, d := range detectors {
		if !d.applicable(ctx) {
			continue
		}
		res.Applicable++

		det := d.detect(candles, ctx)
		if !det.detected {
			continue
		}
		res.Patterns = append(res.Patterns, Match{Kind: d.kind, Confidence: det.confidence})
		total += det.confidence
	}

	res.Count = len(res.Patterns)
	if res.Applicable > 0 {
		res.Score = total / float64(res.Applicable)
	}
	res.MinMet = res.Count >= s.minConfirmations
	return res
}
