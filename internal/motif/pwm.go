// Package motif converts position frequency matrices to log-odds weight
// matrices and scans region sequences for regulator binding motifs.
package motif

import (
	"math"
)

// base indexes A, C, G, T; -1 for anything else (N, IUPAC ambiguity).
var base = [256]int8{}

func init() {
	for i := range base {
		base[i] = -1
	}
	for i, b := range []byte("ACGT") {
		base[b] = int8(i)
		base[b+'a'-'A'] = int8(i)
	}
}

// PFM is a position frequency matrix: Counts[pos][A,C,G,T].
type PFM struct {
	ID     string
	Name   string
	Counts [][4]float64
}

// Len returns the motif width.
func (p PFM) Len() int { return len(p.Counts) }

// PWM is a log-odds position weight matrix.
type PWM struct {
	ID       string
	Scores   [][4]float64
	min, max float64
}

// UniformBackground is the equiprobable nucleotide background.
var UniformBackground = [4]float64{0.25, 0.25, 0.25, 0.25}

// PWM converts counts to log2-odds against bg, adding pseudocount (split
// across bases in proportion to bg) to every column.
func (p PFM) PWM(pseudocount float64, bg [4]float64) PWM {
	w := PWM{ID: p.ID, Scores: make([][4]float64, len(p.Counts))}
	for pos, col := range p.Counts {
		total := col[0] + col[1] + col[2] + col[3] + pseudocount
		lo, hi := math.Inf(1), math.Inf(-1)
		for b := 0; b < 4; b++ {
			freq := (col[b] + pseudocount*bg[b]) / total
			s := math.Log2(freq / bg[b])
			w.Scores[pos][b] = s
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		w.min += lo
		w.max += hi
	}
	return w
}

// Len returns the motif width.
func (w PWM) Len() int { return len(w.Scores) }

// Relative maps a raw score into [0,1] between the worst and best possible
// scores of the matrix.
func (w PWM) Relative(score float64) float64 {
	if w.max == w.min {
		return 0
	}
	return (score - w.min) / (w.max - w.min)
}

// Best returns the highest relative score over both strands of seq, and
// whether any window was scorable. Windows containing non-ACGT bases are
// skipped.
func (w PWM) Best(seq []byte) (float64, bool) {
	n := w.Len()
	if n == 0 || len(seq) < n {
		return 0, false
	}
	best, found := math.Inf(-1), false
	for i := 0; i+n <= len(seq); i++ {
		fwd, rev, ok := 0.0, 0.0, true
		for j := 0; j < n; j++ {
			b := base[seq[i+j]]
			if b < 0 {
				ok = false
				break
			}
			fwd += w.Scores[j][b]
			// Reverse strand: position n-1-j sees the complement (3-b).
			rev += w.Scores[n-1-j][3-b]
		}
		if !ok {
			continue
		}
		found = true
		best = math.Max(best, math.Max(fwd, rev))
	}
	if !found {
		return 0, false
	}
	return w.Relative(best), true
}
