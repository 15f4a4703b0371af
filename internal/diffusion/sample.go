package diffusion

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// WeightedSample draws n distinct elements of idx without replacement, with
// probability proportional to weights. Negative or NaN weights count as
// zero. Once every positive-weight element has been drawn, the remainder is
// filled uniformly from the zero-weight elements, so an all-zero weight
// vector degrades to a uniform draw. The result is sorted ascending.
func WeightedSample(idx []int, weights []float64, n int, src rand.Source) []int {
	if n <= 0 || len(idx) == 0 {
		return nil
	}
	if n >= len(idx) {
		out := append([]int(nil), idx...)
		sort.Ints(out)
		return out
	}

	w := make([]float64, len(weights))
	positive := 0
	for i, v := range weights {
		if v > 0 && !math.IsInf(v, 1) {
			w[i] = v
			positive++
		}
	}

	out := make([]int, 0, n)
	taken := make([]bool, len(idx))
	if positive > 0 {
		ws := sampleuv.NewWeighted(w, src)
		for len(out) < n {
			k, ok := ws.Take()
			if !ok {
				break
			}
			taken[k] = true
			out = append(out, idx[k])
		}
	}

	if rest := n - len(out); rest > 0 {
		var pool []int
		for k := range idx {
			if !taken[k] {
				pool = append(pool, k)
			}
		}
		picks := make([]int, rest)
		sampleuv.WithoutReplacement(picks, len(pool), src)
		for _, p := range picks {
			out = append(out, idx[pool[p]])
		}
	}

	sort.Ints(out)
	return out
}
