package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/regnet/internal/netservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *netservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Runs.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	// Modules.
	r.Get("/runs/{id}/modules", h.ListModules)
	r.Post("/runs/{id}/modules", h.RebuildModules)
	r.Get("/runs/{id}/modules/{regulator}", h.GetModule)

	// Gene models.
	r.Get("/runs/{id}/genes/{gene}", h.GetGeneModel)

	// Graph.
	r.Get("/runs/{id}/graph", h.Graph)

	// Artifact listing; files themselves are served by ArtifactRouter.
	r.Get("/artifacts", h.ListArtifacts)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// ArtifactRouter serves GET /* from the artifact store behind the same auth.
func ArtifactRouter(h *ArtifactHandler, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Get("/*", h.ServeFile)
	return r
}
