// Package apperr defines sentinel errors shared across the pipeline, store and API layers.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyRegions     = errors.New("no regions selected")
	ErrNoMotifs         = errors.New("no motifs map to the requested regulators")
	ErrNoGenes          = errors.New("no target genes")
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoModules        = errors.New("no modules survive the thresholds")
)
