// Package network assembles modules into a directed regulator -> target
// graph and places its nodes in the plane.
package network

import (
	"fmt"
	"sort"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

// NodeKind distinguishes regulators from pure targets.
type NodeKind string

const (
	KindRegulator NodeKind = "regulator"
	KindTarget    NodeKind = "target"
)

// Node is a gene in the graph.
type Node struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Degree int      `json:"degree"`
}

// Point is a 2-D node position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Graph is a directed network. Nodes are sorted by ID and edges keep module
// order. Positions is nil until a layout has been applied.
type Graph struct {
	Nodes     []Node           `json:"nodes"`
	Edges     []models.Edge    `json:"edges"`
	Layout    string           `json:"layout,omitempty"`
	Positions map[string]Point `json:"positions,omitempty"`

	index map[string]int
}

// Build creates the graph of mods. A regulator that is also another
// regulator's target keeps kind regulator.
func Build(mods []models.Module) (*Graph, error) {
	if len(mods) == 0 {
		return nil, fmt.Errorf("network: %w", apperr.ErrNoModules)
	}
	kinds := map[string]NodeKind{}
	degree := map[string]int{}
	g := &Graph{}
	for _, m := range mods {
		kinds[m.Regulator] = KindRegulator
		for _, e := range m.Edges {
			if _, ok := kinds[e.Target]; !ok {
				kinds[e.Target] = KindTarget
			}
			degree[e.Regulator]++
			degree[e.Target]++
			g.Edges = append(g.Edges, e)
		}
	}
	ids := make([]string, 0, len(kinds))
	for id := range kinds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	g.Nodes = make([]Node, len(ids))
	for i, id := range ids {
		g.Nodes[i] = Node{ID: id, Kind: kinds[id], Degree: degree[id]}
	}
	g.reindex()
	return g, nil
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.ID] = i
	}
}

func (g *Graph) at(id string) int {
	if g.index == nil {
		g.reindex()
	}
	return g.index[id]
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	if g.index == nil {
		g.reindex()
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Regulators returns the IDs of regulator nodes.
func (g *Graph) Regulators() []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Kind == KindRegulator {
			out = append(out, n.ID)
		}
	}
	return out
}

// WithLayout returns a copy of g positioned by l. g is not modified. A nil
// l yields an unpositioned copy.
func (g *Graph) WithLayout(l Layout) *Graph {
	cp := &Graph{
		Nodes: append([]Node(nil), g.Nodes...),
		Edges: append([]models.Edge(nil), g.Edges...),
	}
	cp.reindex()
	if l != nil {
		cp.Layout = l.Name()
		cp.Positions = l.Place(cp)
	}
	return cp
}

// Verify checks that every edge is backed by a term of its target's model.
func (g *Graph) Verify(fitted map[string]*models.GeneModel) error {
	for _, e := range g.Edges {
		m, ok := fitted[e.Target]
		if !ok {
			return fmt.Errorf("network: edge %s->%s has no model: %w", e.Regulator, e.Target, apperr.ErrNotFound)
		}
		found := false
		for _, t := range m.Terms {
			if t.Regulator == e.Regulator && t.Region == e.Region && t.Estimate == e.Estimate {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("network: edge %s->%s via %s has no term: %w", e.Regulator, e.Target, e.Region, apperr.ErrNotFound)
		}
	}
	return nil
}
