// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes stored regnet runs to LLM clients via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/regnet/internal/netservice"
	"github.com/starford/regnet/internal/render"
)

const thresholdsURI = "regnet://thresholds"

// Server wraps the MCP server with regnet tools.
type Server struct {
	mcp *server.MCPServer
	svc *netservice.Service
}

// New creates a new MCP server with all regnet tools registered.
func New(svc *netservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"regnet",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	runArg := mcp.WithNumber("run_id", mcp.Description("Run ID; omit for the latest run"))

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List stored pipeline runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 50)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("Summarise the regulator modules of a run: regulator, "+
			"target count, activating/repressing split, mean R² and motif enrichment p-value."),
		runArg,
	), s.listModules)

	s.mcp.AddTool(mcp.NewTool("get_module",
		mcp.WithDescription("Return the full module of one regulator, including every edge "+
			"with its region, estimate and p-values."),
		runArg,
		mcp.WithString("regulator", mcp.Required(), mcp.Description("Regulator name")),
	), s.getModule)

	s.mcp.AddTool(mcp.NewTool("get_gene_model",
		mcp.WithDescription("Return the fitted regression of one target gene: intercept, "+
			"regulator x region terms and goodness of fit."),
		runArg,
		mcp.WithString("gene", mcp.Required(), mcp.Description("Target gene name")),
	), s.getGeneModel)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the laid-out regulatory network of a run as JSON "+
			"(nodes with positions, signed links)."),
		runArg,
		mcp.WithString("layout", mcp.Description("force (default), embedding or circular")),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("get_thresholds_contract",
		mcp.WithDescription("Explain the module thresholds and how edges are selected. "+
			"Read this before interpreting modules."),
	), s.getThresholdsContract)

	// Resource: thresholds contract.
	s.mcp.AddResource(
		mcp.NewResource(thresholdsURI, "Module Thresholds",
			mcp.WithResourceDescription("How module thresholds select network edges."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readThresholdsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// runID resolves the optional run_id argument, falling back to the latest run.
func (s *Server) runID(ctx context.Context, req mcp.CallToolRequest) (int64, error) {
	if id := req.GetInt("run_id", 0); id > 0 {
		return int64(id), nil
	}
	run, err := s.svc.LatestRun(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest run: %w", err)
	}
	return run.ID, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, total, err := s.svc.ListRuns(ctx, req.GetInt("limit", 0), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"runs": runs, "total": total}), nil
}

type moduleSummary struct {
	Regulator        string  `json:"regulator"`
	Targets          int     `json:"targets"`
	Activating       int     `json:"activating"`
	Repressing       int     `json:"repressing"`
	MeanRSquared     float64 `json:"mean_r_squared"`
	MotifEnrichmentP float64 `json:"motif_enrichment_p"`
}

func (s *Server) listModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.runID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	set, err := s.svc.Modules(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]moduleSummary, len(set.Modules))
	for i, m := range set.Modules {
		out[i] = moduleSummary{
			Regulator:        m.Regulator,
			Targets:          m.Meta.NGenes,
			Activating:       m.Meta.NPositive,
			Repressing:       m.Meta.NNegative,
			MeanRSquared:     m.Meta.MeanRSquared,
			MotifEnrichmentP: m.Meta.MotifEnrichmentP,
		}
	}
	return jsonResult(map[string]any{
		"run_id":     id,
		"set_id":     set.ID,
		"thresholds": set.Thresholds,
		"modules":    out,
	}), nil
}

func (s *Server) getModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regulator, err := req.RequireString("regulator")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.runID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Module(ctx, id, regulator)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m), nil
}

func (s *Server) getGeneModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gene, err := req.RequireString("gene")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.runID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.GeneModel(ctx, id, gene)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m), nil
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.runID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.Graph(ctx, id, req.GetString("layout", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buf bytes.Buffer
	if err := (render.JSON{Indent: true}).Render(&buf, g); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) getThresholdsContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ThresholdsContract), nil
}

func (s *Server) readThresholdsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      thresholdsURI,
			MIMEType: "text/markdown",
			Text:     ThresholdsContract,
		},
	}, nil
}
