package partition

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceSource replays fixed draws, then repeats the last one
type sequenceSource struct {
	values []float64
	next   int
}

func (s *sequenceSource) Float64() float64 {
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}

func seeded(seed uint64) *Partitioner {
	return New(rand.New(rand.NewPCG(seed, seed*7+1)))
}

func TestPartition_SumsExactly(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		parts     int
		intensity float64
	}{
		{"Month into 31 days", "1800.0000005", 31, 0.3 / 31},
		{"Day into 24 hours", "58.06451612", 24, 0.3 / (31 * 24)},
		{"Sharp skew", "1000", 10, 4},
		{"Single part", "12.5", 1, 1},
		{"Zero intensity is uniform", "90", 3, 0},
		{"Tiny total", "0.00000007", 24, 0.5},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			shares := seeded(uint64(i+1)).Partition(total, tt.parts, tt.intensity)

			require.Len(t, shares, tt.parts)
			sum := decimal.Zero
			for _, s := range shares {
				assert.False(t, s.IsNegative(), "share %s must not be negative", s)
				sum = sum.Add(s)
			}
			assert.True(t, total.Equal(sum), "sum %s != total %s", sum, total)
		})
	}
}

func TestPartition_ZeroIntensityIsEven(t *testing.T) {
	shares := seeded(3).Partition(decimal.NewFromInt(90), 3, 0)

	for _, s := range shares {
		assert.True(t, s.Equal(decimal.NewFromInt(30)), "got %s", s)
	}
}

func TestPartition_EdgeCases(t *testing.T) {
	p := seeded(9)

	assert.Empty(t, p.Partition(decimal.NewFromInt(100), 0, 1))
	assert.Empty(t, p.Partition(decimal.NewFromInt(100), -3, 1))

	zeros := p.Partition(decimal.Zero, 4, 1)
	require.Len(t, zeros, 4)
	for _, s := range zeros {
		assert.True(t, s.IsZero())
	}

	negative := p.Partition(decimal.NewFromInt(-10), 2, 1)
	require.Len(t, negative, 2)
	for _, s := range negative {
		assert.True(t, s.IsZero())
	}
}

func TestPartition_RedrawsZero(t *testing.T) {
	// A zero draw would make -ln(u) infinite; it must be skipped
	src := &sequenceSource{values: []float64{0, 0.5, 0, 0.25}}
	shares := New(src).Partition(decimal.NewFromInt(10), 2, 1)

	require.Len(t, shares, 2)
	// weights: -ln(0.5) = 0.693..., -ln(0.25) = 1.386... -> 1/3 and 2/3
	assert.True(t, shares[0].Sub(decimal.RequireFromString("3.33333333")).Abs().LessThan(decimal.RequireFromString("0.0000001")))
	assert.True(t, shares[0].Add(shares[1]).Equal(decimal.NewFromInt(10)))
}

func TestPartition_DegenerateWeightsFallBackToEven(t *testing.T) {
	// Negative intensity with u close to 1 drives every weight towards Inf
	src := &sequenceSource{values: []float64{math.Nextafter(1, 0)}}
	shares := New(src).Partition(decimal.NewFromInt(10), 2, -500)

	require.Len(t, shares, 2)
	assert.True(t, shares[0].Add(shares[1]).Equal(decimal.NewFromInt(10)))
	for _, s := range shares {
		assert.False(t, s.IsNegative())
	}
}

func TestPartition_Skew(t *testing.T) {
	shares := seeded(42).Partition(decimal.NewFromInt(1000), 50, 3)

	largest := decimal.Zero
	for _, s := range shares {
		if s.GreaterThan(largest) {
			largest = s
		}
	}
	// With a sharp exponent a handful of slots dominate the split
	assert.True(t, largest.GreaterThan(decimal.NewFromInt(1000).Div(decimal.NewFromInt(50)).Mul(decimal.NewFromInt(3))))
}

func TestUniform_OpenInterval(t *testing.T) {
	p := New(&sequenceSource{values: []float64{0, 0, 0.75}})
	assert.Equal(t, 0.75, p.Uniform())

	global := New(nil)
	for i := 0; i < 100; i++ {
		u := global.Uniform()
		assert.True(t, u > 0 && u < 1)
	}
}
