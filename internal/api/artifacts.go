package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/storage"
)

// ArtifactHandler serves rendered network files from the artifact store.
type ArtifactHandler struct {
	store storage.Provider
}

// NewArtifactHandler creates a handler over the given artifact store.
func NewArtifactHandler(store storage.Provider) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

// ServeFile handles GET /artifacts/*. Paths are resolved by the provider,
// which rejects traversal.
func (h *ArtifactHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if name == "" {
		http.Error(w, "artifact name is required", http.StatusBadRequest)
		return
	}
	f, err := h.store.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, apperr.ErrInvalidInput):
			http.Error(w, "invalid artifact name", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("serve artifact failed", slog.String("name", name), slog.String("error", err.Error()))
	}
}
