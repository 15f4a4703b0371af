package diffusion

import (
	"testing"

	"github.com/nvandessel/hybridsim/internal/seed"
	"github.com/stretchr/testify/assert"
)

func TestWeightedSample(t *testing.T) {
	idx := []int{10, 11, 12, 13, 14, 15}

	tests := []struct {
		name    string
		weights []float64
		n       int
		check   func(t *testing.T, got []int)
	}{
		{
			name:    "n zero",
			weights: []float64{1, 1, 1, 1, 1, 1},
			n:       0,
			check:   func(t *testing.T, got []int) { assert.Empty(t, got) },
		},
		{
			name:    "n covers all",
			weights: []float64{1, 1, 1, 1, 1, 1},
			n:       9,
			check:   func(t *testing.T, got []int) { assert.Equal(t, idx, got) },
		},
		{
			name:    "only positive weights chosen",
			weights: []float64{0, 5, 0, 5, 0, 0},
			n:       2,
			check:   func(t *testing.T, got []int) { assert.Equal(t, []int{11, 13}, got) },
		},
		{
			name:    "zero weights fill the remainder",
			weights: []float64{0, 5, 0, 0, 0, 0},
			n:       3,
			check: func(t *testing.T, got []int) {
				assert.Len(t, got, 3)
				assert.Contains(t, got, 11)
			},
		},
		{
			name:    "all zero falls back to uniform",
			weights: []float64{0, 0, 0, 0, 0, 0},
			n:       4,
			check:   func(t *testing.T, got []int) { assert.Len(t, got, 4) },
		},
		{
			name:    "negative weights count as zero",
			weights: []float64{-3, 1, -3, -3, -3, -3},
			n:       1,
			check:   func(t *testing.T, got []int) { assert.Equal(t, []int{11}, got) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedSample(idx, tt.weights, tt.n, seed.NewSource(5))
			tt.check(t, got)
			seen := map[int]bool{}
			for _, v := range got {
				assert.False(t, seen[v], "duplicate %d", v)
				seen[v] = true
				assert.Contains(t, idx, v)
			}
			assert.IsIncreasing(t, append([]int{-1}, got...))
		})
	}
}

func TestWeightedSampleFavorsHeavyWeights(t *testing.T) {
	idx := []int{0, 1}
	weights := []float64{1, 99}
	src := seed.NewSource(17)

	heavy := 0
	for i := 0; i < 500; i++ {
		if got := WeightedSample(idx, weights, 1, src); got[0] == 1 {
			heavy++
		}
	}
	assert.Greater(t, heavy, 450)
}
