package network

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

func toyModules() []models.Module {
	return []models.Module{
		{Regulator: "A", Targets: []string{"G1", "B"}, Edges: []models.Edge{
			{Regulator: "A", Target: "G1", Region: "r1", Estimate: 1.2, PValue: 1e-6},
			{Regulator: "A", Target: "B", Region: "r1", Estimate: -0.7, PValue: 1e-4},
		}},
		{Regulator: "B", Targets: []string{"G3"}, Edges: []models.Edge{
			{Regulator: "B", Target: "G3", Region: "r2", Estimate: 2.0, PValue: 1e-7},
		}},
	}
}

func TestBuild_NodesAndKinds(t *testing.T) {
	g, err := Build(toyModules())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Nodes) != 4 || len(g.Edges) != 3 {
		t.Fatalf("nodes=%d edges=%d", len(g.Nodes), len(g.Edges))
	}
	b, ok := g.Node("B")
	if !ok || b.Kind != KindRegulator || b.Degree != 2 {
		t.Fatalf("B = %+v", b)
	}
	if got := g.Regulators(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("regulators = %v", got)
	}
	if _, err := Build(nil); !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
}

func TestVerify_EdgesTraceToTerms(t *testing.T) {
	g, err := Build(toyModules())
	if err != nil {
		t.Fatal(err)
	}
	fitted := map[string]*models.GeneModel{
		"G1": {Gene: "G1", Terms: []models.Term{{Regulator: "A", Region: "r1", Estimate: 1.2}}},
		"B":  {Gene: "B", Terms: []models.Term{{Regulator: "A", Region: "r1", Estimate: -0.7}}},
		"G3": {Gene: "G3", Terms: []models.Term{{Regulator: "B", Region: "r2", Estimate: 2.0}}},
	}
	if err := g.Verify(fitted); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	delete(fitted, "G3")
	if err := g.Verify(fitted); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWithLayout_Nil(t *testing.T) {
	g, err := Build(toyModules())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cp := g.WithLayout(nil)
	if cp.Layout != "" || cp.Positions != nil {
		t.Fatalf("layout=%q positions=%v", cp.Layout, cp.Positions)
	}
	if len(cp.Nodes) != len(g.Nodes) || len(cp.Edges) != len(g.Edges) {
		t.Fatalf("copy lost nodes or edges")
	}
}

func TestLayouts_DeterministicAndPure(t *testing.T) {
	g, err := Build(toyModules())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{LayoutForce, LayoutEmbedding, LayoutCircular} {
		l, err := LayoutByName(name, 7)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		first := g.WithLayout(l)
		second := g.WithLayout(l)
		if !reflect.DeepEqual(first.Positions, second.Positions) {
			t.Fatalf("%s: layout not deterministic", name)
		}
		if len(first.Positions) != len(g.Nodes) {
			t.Fatalf("%s: %d positions for %d nodes", name, len(first.Positions), len(g.Nodes))
		}
		for id, p := range first.Positions {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				t.Fatalf("%s: NaN position for %s", name, id)
			}
		}
		if first.Layout != name {
			t.Fatalf("layout name = %q", first.Layout)
		}
	}
	if g.Positions != nil {
		t.Fatal("WithLayout mutated the source graph")
	}
	if _, err := LayoutByName("spiral", 1); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
