// Package render writes a laid-out network graph as a self-contained HTML
// page or as JSON. Rendering never modifies the graph.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/network"
)

// Renderer writes a graph artifact.
type Renderer interface {
	// Ext is the artifact file extension, without the dot.
	Ext() string
	Render(w io.Writer, g *network.Graph) error
}

// ByName returns the renderer for "html" or "json".
func ByName(name string) (Renderer, error) {
	switch name {
	case "html":
		return HTML{Title: "regnet"}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("render: unknown format %q: %w", name, apperr.ErrInvalidInput)
	}
}

const (
	colorRegulator = "#5470c6"
	colorTarget    = "#91cc75"
	colorPositive  = "#c23531"
	colorNegative  = "#2f4554"
)

// HTML renders an ECharts graph with fixed node coordinates. Activating and
// repressing edges are drawn as separate series so each gets its own colour.
type HTML struct {
	Title         string
	Width, Height int
}

func (HTML) Ext() string { return "html" }

func (h HTML) Render(w io.Writer, g *network.Graph) error {
	if g.Positions == nil {
		return fmt.Errorf("render: graph has no layout: %w", apperr.ErrInvalidInput)
	}
	width, height := h.Width, h.Height
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 900
	}

	chart := charts.NewGraph()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: h.Title,
			Width:     fmt.Sprintf("%dpx", width),
			Height:    fmt.Sprintf("%dpx", height),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    h.Title,
			Subtitle: fmt.Sprintf("%d nodes, %d edges, %s layout", len(g.Nodes), len(g.Edges), g.Layout),
		}),
	)

	nodes := graphNodes(g, float64(width), float64(height))
	var pos, neg []opts.GraphLink
	for _, e := range g.Edges {
		link := opts.GraphLink{Source: e.Regulator, Target: e.Target, Value: float32(e.Estimate)}
		if e.Sign() > 0 {
			pos = append(pos, link)
		} else {
			neg = append(neg, link)
		}
	}
	series := []struct {
		name  string
		links []opts.GraphLink
		color string
	}{
		{"activating", pos, colorPositive},
		{"repressing", neg, colorNegative},
	}
	for _, s := range series {
		chart.AddSeries(s.name, nodes, s.links,
			charts.WithGraphChartOpts(opts.GraphChart{Layout: "none"}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: s.color, Width: 1.5}),
		)
	}
	return chart.Render(w)
}

func graphNodes(g *network.Graph, width, height float64) []opts.GraphNode {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range g.Positions {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	scale := func(v, lo, hi, size float64) float32 {
		const margin = 60
		if hi == lo {
			return float32(size / 2)
		}
		return float32(margin + (v-lo)/(hi-lo)*(size-2*margin))
	}

	out := make([]opts.GraphNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		p := g.Positions[n.ID]
		color, size := colorTarget, 8+2*math.Sqrt(float64(n.Degree))
		if n.Kind == network.KindRegulator {
			color, size = colorRegulator, size+8
		}
		out = append(out, opts.GraphNode{
			Name:       n.ID,
			X:          scale(p.X, minX, maxX, width),
			Y:          scale(p.Y, minY, maxY, height),
			Value:      float32(n.Degree),
			SymbolSize: size,
			ItemStyle:  &opts.ItemStyle{Color: color},
		})
	}
	return out
}

// JSON renders nodes with positions and signed links.
type JSON struct {
	Indent bool
}

func (JSON) Ext() string { return "json" }

type jsonNode struct {
	ID     string           `json:"id"`
	Kind   network.NodeKind `json:"kind"`
	Degree int              `json:"degree"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
}

type jsonLink struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Region   string  `json:"region"`
	Estimate float64 `json:"estimate"`
	Sign     int     `json:"sign"`
	PValue   float64 `json:"p_value"`
}

type jsonGraph struct {
	Layout string     `json:"layout"`
	Nodes  []jsonNode `json:"nodes"`
	Links  []jsonLink `json:"links"`
}

func (j JSON) Render(w io.Writer, g *network.Graph) error {
	out := jsonGraph{
		Layout: g.Layout,
		Nodes:  make([]jsonNode, 0, len(g.Nodes)),
		Links:  make([]jsonLink, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		p := g.Positions[n.ID]
		out.Nodes = append(out.Nodes, jsonNode{ID: n.ID, Kind: n.Kind, Degree: n.Degree, X: p.X, Y: p.Y})
	}
	for _, e := range g.Edges {
		out.Links = append(out.Links, jsonLink{
			Source: e.Regulator, Target: e.Target, Region: e.Region,
			Estimate: e.Estimate, Sign: e.Sign(), PValue: e.PValue,
		})
	}
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
