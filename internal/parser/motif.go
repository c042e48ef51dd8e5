package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/motif"
)

// ParseJASPAR reads position frequency matrices in JASPAR format:
//
//	>MA0004.1	Arnt
//	A  [ 4 19  0  0 ]
//	C  [16  0 20  0 ]
//	G  [ 0  1  0 20 ]
//	T  [ 0  0  0  0 ]
//
// The bracket-less variant (four bare rows of counts) is accepted too.
func ParseJASPAR(r io.Reader) ([]motif.PFM, error) {
	sc := bufio.NewScanner(r)
	var (
		out  []motif.PFM
		cur  *motif.PFM
		rows [][]float64
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		if len(rows) != 4 {
			return fmt.Errorf("parser: motif %s has %d rows, want 4: %w", cur.ID, len(rows), apperr.ErrInvalidInput)
		}
		width := len(rows[0])
		for _, row := range rows {
			if len(row) != width || width == 0 {
				return fmt.Errorf("parser: motif %s has ragged rows: %w", cur.ID, apperr.ErrInvalidInput)
			}
		}
		cur.Counts = make([][4]float64, width)
		for pos := 0; pos < width; pos++ {
			for b := 0; b < 4; b++ {
				cur.Counts[pos][b] = rows[b][pos]
			}
		}
		out = append(out, *cur)
		cur, rows = nil, nil
		return nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if err := flush(); err != nil {
				return nil, err
			}
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("parser: motif header without id: %w", apperr.ErrInvalidInput)
			}
			cur = &motif.PFM{ID: fields[0], Name: fields[0]}
			if len(fields) > 1 {
				cur.Name = fields[1]
			}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("parser: motif counts before header: %w", apperr.ErrInvalidInput)
		}
		row, err := parseCountRow(line)
		if err != nil {
			return nil, fmt.Errorf("parser: motif %s: %w", cur.ID, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseJASPARFile is ParseJASPAR over a (possibly gzipped) file.
func ParseJASPARFile(path string) ([]motif.PFM, error) {
	return withFile(path, ParseJASPAR)
}

func parseCountRow(line string) ([]float64, error) {
	line = strings.TrimLeft(line, "ACGTacgt \t")
	line = strings.NewReplacer("[", " ", "]", " ").Replace(line)
	fields := strings.Fields(line)
	row := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("count %q: %w", f, apperr.ErrInvalidInput)
		}
		row = append(row, v)
	}
	return row, nil
}

// ParseMotifMap reads "motif<TAB>regulator" lines. A motif may map to several
// regulators. An optional header starting with "motif" is skipped.
func ParseMotifMap(r io.Reader) (motif.Mapping, error) {
	m := motif.Mapping{}
	first := true
	err := scanFields(r, func(lineNo int, f []string) error {
		if first {
			first = false
			if strings.EqualFold(f[0], "motif") {
				return nil
			}
		}
		if len(f) < 2 || f[0] == "" || f[1] == "" {
			return fmt.Errorf("parser: motif map line %d: %w", lineNo, apperr.ErrInvalidInput)
		}
		m.Add(f[0], f[1])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ParseMotifMapFile is ParseMotifMap over a (possibly gzipped) file.
func ParseMotifMapFile(path string) (motif.Mapping, error) {
	return withFile(path, ParseMotifMap)
}
