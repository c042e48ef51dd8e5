package api

import (
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/store"
)

// RunRow is a stored run (aliased from the store layer).
type RunRow = store.RunRow

// RunListResponse wraps paginated run listings.
type RunListResponse struct {
	Runs  []RunRow `json:"runs" validate:"required"`
	Total int      `json:"total" example:"3" validate:"required"`
}

// ModuleSet is a stored module set (aliased from the store layer).
type ModuleSet = store.ModuleSet

// Module is one regulator module.
type Module = models.Module

// GeneModel is the fitted regression of one target gene.
type GeneModel = models.GeneModel

// RebuildModulesRequest carries the thresholds for POST /api/runs/{id}/modules.
// Omitted fields keep their defaults.
type RebuildModulesRequest = modules.Thresholds

// GraphNode is a node of the rendered network.
type GraphNode struct {
	ID     string  `json:"id" example:"GATA1" validate:"required"`
	Kind   string  `json:"kind" example:"regulator" validate:"required"`
	Degree int     `json:"degree" example:"4"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// GraphLink is a regulator -> target edge of the rendered network.
type GraphLink struct {
	Source   string  `json:"source" example:"GATA1" validate:"required"`
	Target   string  `json:"target" example:"HBB" validate:"required"`
	Region   string  `json:"region" example:"chr11:5250000-5250500"`
	Estimate float64 `json:"estimate" example:"1.8"`
	Sign     int     `json:"sign" example:"1"`
	PValue   float64 `json:"p_value" example:"0.0004"`
}

// GraphResponse is the laid-out network of a run's latest module set.
type GraphResponse struct {
	Layout string      `json:"layout" example:"force"`
	Nodes  []GraphNode `json:"nodes" validate:"required"`
	Links  []GraphLink `json:"links" validate:"required"`
}

// ArtifactListResponse lists rendered artifacts.
type ArtifactListResponse struct {
	Artifacts []models.Artifact `json:"artifacts" validate:"required"`
}
