package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/netservice"
	"github.com/starford/regnet/internal/network"
)

// Handler holds API route handlers.
type Handler struct {
	svc *netservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *netservice.Service) *Handler {
	return &Handler{svc: svc}
}

// runID parses the {id} URL parameter. It writes a 400 and returns false on failure.
func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return 0, false
	}
	return id, true
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List pipeline runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	runs, total, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: total})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get a single run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		int	true	"Run ID"
//	@Success		200	{object}	RunRow
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListModules handles GET /api/runs/{id}/modules.
//
//	@Summary		Get the latest module set of a run
//	@Tags			modules
//	@Produce		json
//	@Param			id	path		int	true	"Run ID"
//	@Success		200	{object}	ModuleSet
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/modules [get]
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	set, err := h.svc.Modules(r.Context(), id)
	if err != nil {
		writeError(w, "list modules", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// RebuildModules handles POST /api/runs/{id}/modules.
//
//	@Summary		Rebuild modules from stored models with new thresholds
//	@Tags			modules
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Run ID"
//	@Param			body	body		RebuildModulesRequest	true	"Thresholds"
//	@Success		201		{object}	ModuleSet
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/modules [post]
func (h *Handler) RebuildModules(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	th := modules.DefaultThresholds()
	if err := json.NewDecoder(r.Body).Decode(&th); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	set, err := h.svc.RebuildModules(r.Context(), id, th)
	if err != nil {
		writeError(w, "rebuild modules", err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// GetModule handles GET /api/runs/{id}/modules/{regulator}.
//
//	@Summary		Get the module of one regulator
//	@Tags			modules
//	@Produce		json
//	@Param			id			path		int		true	"Run ID"
//	@Param			regulator	path		string	true	"Regulator"
//	@Success		200			{object}	Module
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/modules/{regulator} [get]
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	m, err := h.svc.Module(r.Context(), id, chi.URLParam(r, "regulator"))
	if err != nil {
		writeError(w, "get module", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetGeneModel handles GET /api/runs/{id}/genes/{gene}.
//
//	@Summary		Get the fitted model of one gene
//	@Tags			models
//	@Produce		json
//	@Param			id		path		int		true	"Run ID"
//	@Param			gene	path		string	true	"Gene"
//	@Success		200		{object}	GeneModel
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/genes/{gene} [get]
func (h *Handler) GetGeneModel(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	m, err := h.svc.GeneModel(r.Context(), id, chi.URLParam(r, "gene"))
	if err != nil {
		writeError(w, "get gene model", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Graph handles GET /api/runs/{id}/graph.
//
//	@Summary		Get the laid-out regulatory network
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		int		true	"Run ID"
//	@Param			layout	query		string	false	"Layout"	Enums(force, embedding, circular)
//	@Success		200		{object}	GraphResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	g, err := h.svc.Graph(r.Context(), id, r.URL.Query().Get("layout"))
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, graphResponse(g))
}

// ListArtifacts handles GET /api/artifacts.
//
//	@Summary		List rendered artifacts
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{object}	ArtifactListResponse
//	@Security		BearerAuth
//	@Router			/artifacts [get]
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Artifacts(r.Context())
	if err != nil {
		writeError(w, "list artifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, ArtifactListResponse{Artifacts: items})
}

func graphResponse(g *network.Graph) GraphResponse {
	resp := GraphResponse{
		Layout: g.Layout,
		Nodes:  make([]GraphNode, len(g.Nodes)),
		Links:  make([]GraphLink, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		p := g.Positions[n.ID]
		resp.Nodes[i] = GraphNode{ID: n.ID, Kind: string(n.Kind), Degree: n.Degree, X: p.X, Y: p.Y}
	}
	for i, e := range g.Edges {
		resp.Links[i] = GraphLink{
			Source:   e.Regulator,
			Target:   e.Target,
			Region:   e.Region,
			Estimate: e.Estimate,
			Sign:     e.Sign(),
			PValue:   e.PValue,
		}
	}
	return resp
}
