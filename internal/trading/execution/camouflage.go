package execution

import (
	"math"
	"math/rand"
	"time"

	"github.com/Alias1177/HydraX/models"
)

// Camouflage controls the randomization applied to every order so that
// sizes, targets and timing do not repeat exactly
type Camouflage struct {
	LotVariancePct   float64 // Gaussian, sigma = variance/3
	PriceVariancePct float64 // uniform
	MinDelay         time.Duration
	MaxDelay         time.Duration
}

// DefaultCamouflage returns 3% lot variance, 1% price variance and a 0.5-3.5s delay
func DefaultCamouflage() Camouflage {
	return Camouflage{
		LotVariancePct:   3,
		PriceVariancePct: 1,
		MinDelay:         500 * time.Millisecond,
		MaxDelay:         3500 * time.Millisecond,
	}
}

// JitterLot scales size by a normally distributed factor around 1. The factor
// is clamped to ±LotVariancePct.
func (c Camouflage) JitterLot(rnd *rand.Rand, size float64) float64 {
	v := c.LotVariancePct / 100
	if v <= 0 {
		return size
	}
	factor := 1 + rnd.NormFloat64()*v/3
	factor = math.Max(1-v, math.Min(1+v, factor))
	return size * factor
}

// JitterPrice moves price uniformly within ±PriceVariancePct
func (c Camouflage) JitterPrice(rnd *rand.Rand, price float64) float64 {
	v := c.PriceVariancePct / 100
	if v <= 0 || price == 0 {
		return price
	}
	return price * (1 - v + rnd.Float64()*2*v)
}

// HumanDelay picks a uniform wait in [MinDelay, MaxDelay]
func (c Camouflage) HumanDelay(rnd *rand.Rand) time.Duration {
	if c.MaxDelay <= c.MinDelay {
		return c.MinDelay
	}
	return c.MinDelay + time.Duration(rnd.Int63n(int64(c.MaxDelay-c.MinDelay)+1))
}

// Apply randomizes the amount, stop loss and both targets of req.
// The entry price is left untouched.
func (c Camouflage) Apply(rnd *rand.Rand, req models.OrderRequest) models.OrderRequest {
	req.Amount = c.JitterLot(rnd, req.Amount)
	req.TP1 = c.JitterPrice(rnd, req.TP1)
	req.TP2 = c.JitterPrice(rnd, req.TP2)
	req.StopLoss = c.JitterPrice(rnd, req.StopLoss)
	return req
}
