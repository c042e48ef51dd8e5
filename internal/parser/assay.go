package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/matrix"
)

// ParseAssay reads a dense feature x cell table. The header row holds the cell
// IDs (its first cell, the feature column name, is ignored); each following
// row is a feature ID followed by one value per cell. sep is ',' or '\t'.
// Every cell must hold a finite number: empty cells, NA, NaN and Inf are
// rejected rather than read as observations.
func ParseAssay(r io.Reader, sep rune) (*matrix.Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.Comment = '#'
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parser: assay header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("parser: assay header has no cells: %w", apperr.ErrInvalidInput)
	}
	cells := append([]string(nil), header[1:]...)

	var (
		features []string
		rows     [][]float64
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: assay: %w", err)
		}
		if len(rec) != len(cells)+1 {
			return nil, fmt.Errorf("parser: assay row %q has %d values, want %d: %w", rec[0], len(rec)-1, len(cells), apperr.ErrInvalidInput)
		}
		vals := make([]float64, len(cells))
		for j, s := range rec[1:] {
			s = strings.TrimSpace(s)
			if s == "" || strings.EqualFold(s, "NA") {
				return nil, fmt.Errorf("parser: assay row %q cell %s: missing value: %w", rec[0], cells[j], apperr.ErrInvalidInput)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("parser: assay row %q cell %s: not a finite number %q: %w", rec[0], cells[j], s, apperr.ErrInvalidInput)
			}
			vals[j] = v
		}
		features = append(features, rec[0])
		rows = append(rows, vals)
	}
	return matrix.FromRows(features, cells, rows)
}

// ParseAssayFile picks the separator from the extension (.csv → comma,
// anything else → tab) and parses the file.
func ParseAssayFile(path string) (*matrix.Matrix, error) {
	sep := '\t'
	base := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if filepath.Ext(base) == ".csv" {
		sep = ','
	}
	return withFile(path, func(r io.Reader) (*matrix.Matrix, error) {
		return ParseAssay(r, sep)
	})
}
