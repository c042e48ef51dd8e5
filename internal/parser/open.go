// Package parser reads the pipeline's input formats: BED intervals, gene
// annotations, assay matrices, JASPAR motifs and motif-to-regulator maps.
package parser

import (
	"compress/gzip"
	"io"
	"os"
	"strings"
)

type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens path for reading, transparently decompressing gzip input
// (detected by magic bytes or a .gz suffix). "-" reads stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}

// withFile opens path and hands the reader to fn.
func withFile[T any](path string, fn func(io.Reader) (T, error)) (T, error) {
	rc, err := Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer rc.Close()
	return fn(rc)
}
