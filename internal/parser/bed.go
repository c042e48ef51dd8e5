package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

// ParseBED reads BED3+ records. When a name column is present it becomes the
// region ID, otherwise the ID is "chrom:start-end". Track/browser/comment
// lines are skipped.
func ParseBED(r io.Reader) ([]models.Region, error) {
	var out []models.Region
	err := scanFields(r, func(lineNo int, f []string) error {
		if len(f) < 3 {
			return fmt.Errorf("parser: bed line %d: want >=3 columns, got %d: %w", lineNo, len(f), apperr.ErrInvalidInput)
		}
		start, end, err := parseSpan(f[1], f[2])
		if err != nil {
			return fmt.Errorf("parser: bed line %d: %w", lineNo, err)
		}
		reg := models.Region{Chrom: f[0], Start: start, End: end}
		if len(f) > 3 && f[3] != "" && f[3] != "." {
			reg.ID = f[3]
		} else {
			reg.ID = reg.Key()
		}
		out = append(out, reg)
		return nil
	})
	return out, err
}

// ParseBEDFile is ParseBED over a (possibly gzipped) file.
func ParseBEDFile(path string) ([]models.Region, error) {
	return withFile(path, ParseBED)
}

// ParseGenes reads a BED6 gene annotation: chrom start end name score strand.
// A missing strand column is treated as '+'.
func ParseGenes(r io.Reader) ([]models.Gene, error) {
	var out []models.Gene
	seen := make(map[string]struct{})
	err := scanFields(r, func(lineNo int, f []string) error {
		if len(f) < 4 {
			return fmt.Errorf("parser: gene line %d: want >=4 columns, got %d: %w", lineNo, len(f), apperr.ErrInvalidInput)
		}
		start, end, err := parseSpan(f[1], f[2])
		if err != nil {
			return fmt.Errorf("parser: gene line %d: %w", lineNo, err)
		}
		strand := byte('+')
		if len(f) >= 6 && f[5] == "-" {
			strand = '-'
		}
		if _, dup := seen[f[3]]; dup {
			// First record wins for genes with several annotated loci.
			return nil
		}
		seen[f[3]] = struct{}{}
		out = append(out, models.Gene{Name: f[3], Chrom: f[0], Start: start, End: end, Strand: strand})
		return nil
	})
	return out, err
}

// ParseGenesFile is ParseGenes over a (possibly gzipped) file.
func ParseGenesFile(path string) ([]models.Gene, error) {
	return withFile(path, ParseGenes)
}

func parseSpan(a, b string) (int, int, error) {
	start, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("start %q: %w", a, apperr.ErrInvalidInput)
	}
	end, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("end %q: %w", b, apperr.ErrInvalidInput)
	}
	if start < 0 || end <= start {
		return 0, 0, fmt.Errorf("empty interval %d-%d: %w", start, end, apperr.ErrInvalidInput)
	}
	return start, end, nil
}

// scanFields calls fn with the tab-separated fields of every data line.
func scanFields(r io.Reader, fn func(lineNo int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		if err := fn(lineNo, strings.Split(line, "\t")); err != nil {
			return err
		}
	}
	return sc.Err()
}
