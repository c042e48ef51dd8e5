// Package matrix holds dense feature x cell assay data (expression or
// accessibility) on top of gonum.
package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/starford/regnet/internal/apperr"
)

// Matrix is an immutable features x cells assay.
type Matrix struct {
	features []string
	cells    []string
	rows     map[string]int
	data     *mat.Dense
}

// FromRows builds a Matrix from row-major values. rows[i] belongs to features[i].
func FromRows(features, cells []string, rows [][]float64) (*Matrix, error) {
	if len(features) == 0 || len(cells) == 0 {
		return nil, fmt.Errorf("matrix: empty dimensions %dx%d: %w", len(features), len(cells), apperr.ErrInvalidInput)
	}
	if len(rows) != len(features) {
		return nil, fmt.Errorf("matrix: %d rows for %d features: %w", len(rows), len(features), apperr.ErrInvalidInput)
	}
	flat := make([]float64, 0, len(features)*len(cells))
	for i, r := range rows {
		if len(r) != len(cells) {
			return nil, fmt.Errorf("matrix: row %s has %d values, want %d: %w", features[i], len(r), len(cells), apperr.ErrInvalidInput)
		}
		flat = append(flat, r...)
	}
	return New(features, cells, mat.NewDense(len(features), len(cells), flat))
}

// New wraps data; its shape must be len(features) x len(cells) and every
// value must be finite.
func New(features, cells []string, data *mat.Dense) (*Matrix, error) {
	r, c := data.Dims()
	if r != len(features) || c != len(cells) {
		return nil, fmt.Errorf("matrix: data is %dx%d, labels are %dx%d: %w", r, c, len(features), len(cells), apperr.ErrInvalidInput)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := data.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("matrix: %s/%s is not finite: %w", features[i], cells[j], apperr.ErrInvalidInput)
			}
		}
	}
	idx := make(map[string]int, len(features))
	for i, f := range features {
		if _, dup := idx[f]; dup {
			return nil, fmt.Errorf("matrix: duplicate feature %q: %w", f, apperr.ErrInvalidInput)
		}
		idx[f] = i
	}
	return &Matrix{features: features, cells: cells, rows: idx, data: data}, nil
}

// Dims returns (features, cells).
func (m *Matrix) Dims() (int, int) { return m.data.Dims() }

// Features returns the row labels.
func (m *Matrix) Features() []string { return m.features }

// Cells returns the column labels.
func (m *Matrix) Cells() []string { return m.cells }

// Has reports whether the feature exists.
func (m *Matrix) Has(feature string) bool {
	_, ok := m.rows[feature]
	return ok
}

// Row returns a copy of the feature's values across cells.
func (m *Matrix) Row(feature string) ([]float64, bool) {
	i, ok := m.rows[feature]
	if !ok {
		return nil, false
	}
	return mat.Row(nil, i, m.data), true
}

// Variance returns the sample variance of a feature, or 0 when absent.
func (m *Matrix) Variance(feature string) float64 {
	row, ok := m.Row(feature)
	if !ok || len(row) < 2 {
		return 0
	}
	return stat.Variance(row, nil)
}

// Reorder returns a matrix whose columns follow cells. Every requested cell
// must be present.
func (m *Matrix) Reorder(cells []string) (*Matrix, error) {
	if sameOrder(m.cells, cells) {
		return m, nil
	}
	pos := make(map[string]int, len(m.cells))
	for j, c := range m.cells {
		pos[c] = j
	}
	nr, _ := m.data.Dims()
	out := mat.NewDense(nr, len(cells), nil)
	for k, c := range cells {
		j, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("matrix: cell %q missing: %w", c, apperr.ErrInvalidInput)
		}
		for i := 0; i < nr; i++ {
			out.Set(i, k, m.data.At(i, j))
		}
	}
	return New(m.features, cells, out)
}

// SharedCells returns the cells present in both matrices, in a's order.
func SharedCells(a, b *Matrix) []string {
	in := make(map[string]struct{}, len(b.cells))
	for _, c := range b.cells {
		in[c] = struct{}{}
	}
	var out []string
	for _, c := range a.cells {
		if _, ok := in[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
