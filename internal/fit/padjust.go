package fit

import (
	"math"
	"sort"
)

// adjustBH returns Benjamini-Hochberg adjusted p-values in input order.
func adjustBH(p []float64) []float64 {
	m := len(p)
	out := make([]float64, m)
	if m == 0 {
		return out
	}
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })
	running := math.Inf(1)
	for rank := m; rank >= 1; rank-- {
		i := order[rank-1]
		v := p[i] * float64(m) / float64(rank)
		running = math.Min(running, v)
		out[i] = math.Min(1, running)
	}
	return out
}
