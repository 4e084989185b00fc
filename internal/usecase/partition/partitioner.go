// Package partition splits an amount into randomly weighted non-negative shares.
package partition

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

// ShareScale is the number of decimal places every share is truncated to
const ShareScale = 8

// RandomSource yields uniform values in [0, 1)
// *rand.Rand from math/rand/v2 satisfies it
type RandomSource interface {
	Float64() float64
}

// Partitioner performs the randomized power-law split
// It is safe for concurrent use; draws from rnd are serialized
type Partitioner struct {
	mu  sync.Mutex
	rnd RandomSource
}

// New creates a Partitioner drawing from rnd
// A nil rnd falls back to the global math/rand/v2 source
func New(rnd RandomSource) *Partitioner {
	if rnd == nil {
		rnd = globalSource{}
	}
	return &Partitioner{rnd: rnd}
}

// Uniform draws a value from the open interval (0, 1)
func (p *Partitioner) Uniform() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		u := p.rnd.Float64()
		if u > 0 && u < 1 {
			return u
		}
	}
}

// Partition splits total into parts shares whose sum equals total exactly
// Logic:
//  1. For each slot draw u in (0,1) and weight it w = (-ln u)^intensity
//  2. Normalize the weights to sum to 1 and multiply by total
//  3. Truncate to ShareScale places and give the rounding remainder to the largest share
//
// parts <= 0 returns nil. A zero or negative total returns all-zero shares.
func (p *Partitioner) Partition(total decimal.Decimal, parts int, intensity float64) []decimal.Decimal {
	if parts <= 0 {
		return nil
	}

	shares := make([]decimal.Decimal, parts)
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return shares
	}

	weights := make([]float64, parts)
	weightSum := 0.0
	for i := range weights {
		w := math.Pow(-math.Log(p.Uniform()), intensity)
		// Clamp pathological draws (NaN, Inf, negative) to zero weight
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			w = 0
		}
		weights[i] = w
		weightSum += w
	}

	if weightSum <= 0 || math.IsInf(weightSum, 0) {
		// Every draw was degenerate; fall back to an even split
		for i := range weights {
			weights[i] = 1
		}
		weightSum = float64(parts)
	}

	allocated := decimal.Zero
	largest := 0
	for i, w := range weights {
		share := total.Mul(decimal.NewFromFloat(w)).Div(decimal.NewFromFloat(weightSum)).Truncate(ShareScale)
		if share.LessThan(decimal.Zero) {
			share = decimal.Zero
		}
		shares[i] = share
		allocated = allocated.Add(share)
		if w > weights[largest] {
			largest = i
		}
	}

	// Truncation never over-allocates, so the remainder is non-negative
	shares[largest] = shares[largest].Add(total.Sub(allocated))

	return shares
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
