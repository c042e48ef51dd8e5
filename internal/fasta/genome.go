// Package fasta reads FASTA genomes and serves region sequences.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/parser"
)

// Genome is an in-memory, upper-cased set of chromosome sequences.
type Genome struct {
	seqs map[string][]byte
}

// Read parses FASTA from r, keeping only records accepted by keep (nil keeps
// all). It returns promptly with ctx.Err() when ctx is cancelled.
func Read(ctx context.Context, r io.Reader, keep func(id string) bool) (*Genome, error) {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	g := &Genome{seqs: make(map[string][]byte)}
	var (
		id   string
		seq  []byte
		skip bool
		n    int
	)
	flush := func() {
		if id != "" && !skip {
			g.seqs[id] = seq
		}
	}
	for sc.Scan() {
		if n++; n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			fields := strings.Fields(string(line[1:]))
			if len(fields) == 0 {
				return nil, fmt.Errorf("fasta: header without id: %w", apperr.ErrInvalidInput)
			}
			id = fields[0]
			seq = nil
			skip = keep != nil && !keep(id)
			continue
		}
		if id == "" {
			return nil, fmt.Errorf("fasta: sequence before first header: %w", apperr.ErrInvalidInput)
		}
		if !skip {
			seq = append(seq, bytes.ToUpper(line)...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fasta: read: %w", err)
	}
	flush()
	return g, nil
}

// Load reads a (possibly gzipped) FASTA file.
func Load(ctx context.Context, path string, keep func(id string) bool) (*Genome, error) {
	rc, err := parser.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fasta: open %s: %w", path, err)
	}
	defer rc.Close()
	return Read(ctx, rc, keep)
}

// FromMap builds a Genome from literal sequences.
func FromMap(seqs map[string]string) *Genome {
	g := &Genome{seqs: make(map[string][]byte, len(seqs))}
	for k, v := range seqs {
		g.seqs[k] = []byte(strings.ToUpper(v))
	}
	return g
}

// Chroms returns the number of loaded records.
func (g *Genome) Chroms() int { return len(g.seqs) }

// Sequence returns a copy of chrom[start:end]. The end is clipped to the
// chromosome length.
func (g *Genome) Sequence(chrom string, start, end int) ([]byte, error) {
	s, ok := g.seqs[chrom]
	if !ok {
		return nil, fmt.Errorf("fasta: chromosome %q: %w", chrom, apperr.ErrNotFound)
	}
	if end > len(s) {
		end = len(s)
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("fasta: %s:%d-%d out of range: %w", chrom, start, end, apperr.ErrInvalidInput)
	}
	return bytes.Clone(s[start:end]), nil
}
