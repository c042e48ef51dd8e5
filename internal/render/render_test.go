package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/network"
)

func laidOut(t *testing.T) *network.Graph {
	t.Helper()
	g, err := network.Build([]models.Module{
		{Regulator: "A", Targets: []string{"G1", "G2"}, Edges: []models.Edge{
			{Regulator: "A", Target: "G1", Region: "r1", Estimate: 1.1},
			{Regulator: "A", Target: "G2", Region: "r1", Estimate: -0.4},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g.WithLayout(network.Circular{})
}

func TestJSON_Render(t *testing.T) {
	g := laidOut(t)
	before := make(map[string]network.Point, len(g.Positions))
	for id, p := range g.Positions {
		before[id] = p
	}

	var buf bytes.Buffer
	if err := (JSON{}).Render(&buf, g); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var out jsonGraph
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Nodes) != 3 || len(out.Links) != 2 {
		t.Fatalf("nodes=%d links=%d", len(out.Nodes), len(out.Links))
	}
	if out.Links[1].Sign != -1 || out.Layout != network.LayoutCircular {
		t.Fatalf("unexpected output: %+v", out)
	}
	if !reflect.DeepEqual(before, g.Positions) {
		t.Fatal("render mutated graph")
	}
}

func TestHTML_Render(t *testing.T) {
	var buf bytes.Buffer
	if err := (HTML{Title: "toy"}).Render(&buf, laidOut(t)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<html", "toy", "activating", "repressing", "G2"} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestRender_RequiresLayout(t *testing.T) {
	g, err := network.Build([]models.Module{{Regulator: "A", Edges: []models.Edge{{Regulator: "A", Target: "G"}}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := (HTML{}).Render(&bytes.Buffer{}, g); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := ByName("svg"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
