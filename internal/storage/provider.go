// Package storage defines the artifact directory abstraction.
package storage

import (
	"io"

	"github.com/starford/regnet/internal/models"
)

// Provider is the interface for artifact file operations. Paths are
// relative to the artifact root.
type Provider interface {
	// List returns metadata for every artifact under dir.
	List(dir string) ([]models.Artifact, error)
	// Open returns a reader for the artifact at path.
	Open(path string) (io.ReadCloser, error)
	// Read returns the raw bytes of the artifact at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// WriteFunc atomically writes whatever fn produces to path. Nothing is
	// visible at path if fn fails.
	WriteFunc(path string, fn func(io.Writer) error) error
	// Delete removes the artifact at path.
	Delete(path string) error
}
