package netservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/testutil"
)

type recorder struct {
	mu       sync.Mutex
	progress int
	updates  []int
}

func (r *recorder) FitProgress(string, int, int, string) {
	r.mu.Lock()
	r.progress++
	r.mu.Unlock()
}

func (r *recorder) ModulesUpdated(_, _ int64, n int) {
	r.mu.Lock()
	r.updates = append(r.updates, n)
	r.mu.Unlock()
}

func toySpec(t *testing.T) RunSpec {
	t.Helper()
	f := testutil.WriteToyFiles(t)
	th := modules.DefaultThresholds()
	th.MinGenesPerModule = 1
	return RunSpec{
		Name: "toy",
		Inputs: Inputs{
			Expression:    f.Expression,
			Accessibility: f.Accessibility,
			Genes:         f.Genes,
			Genome:        f.Genome,
			Motifs:        f.Motifs,
			MotifMap:      f.MotifMap,
		},
		Association: assoc.NameWindow,
		AssocParams: assoc.DefaultParams(),
		Workers:     2,
		Thresholds:  th,
		Layout:      "force",
	}
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	_, artifacts := testutil.TestArtifacts(t)
	rec := &recorder{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(testutil.TestStore(t), artifacts, rec, logger), rec
}

func TestRun_EndToEnd(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	sum, err := svc.Run(ctx, toySpec(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Modules != 2 || sum.Edges != 3 || sum.Run.NModels != 3 {
		t.Fatalf("summary = %+v run=%+v", sum, sum.Run)
	}
	if rec.progress != 3 || len(rec.updates) != 1 {
		t.Fatalf("notifications: progress=%d updates=%v", rec.progress, rec.updates)
	}

	arts, err := svc.Artifacts(ctx)
	if err != nil || len(arts) != 2 {
		t.Fatalf("artifacts = %+v, %v", arts, err)
	}

	m, err := svc.Module(ctx, sum.Run.ID, "A")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	targets := append([]string(nil), m.Targets...)
	sort.Strings(targets)
	if strings.Join(targets, ",") != "G1,G2" {
		t.Fatalf("targets = %v", targets)
	}
	if _, err := svc.Module(ctx, sum.Run.ID, "Z"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	gm, err := svc.GeneModel(ctx, sum.Run.ID, "G3")
	if err != nil || len(gm.Terms) != 1 || gm.Terms[0].Regulator != "B" {
		t.Fatalf("gene model = %+v, %v", gm, err)
	}

	g, err := svc.Graph(ctx, sum.Run.ID, "embedding")
	if err != nil || len(g.Edges) != 3 || len(g.Positions) != 5 {
		t.Fatalf("graph = %+v, %v", g, err)
	}
}

func TestRebuildModules(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	sum, err := svc.Run(ctx, toySpec(t))
	if err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Modules(ctx, sum.Run.ID)

	th := modules.DefaultThresholds()
	th.MinGenesPerModule = 2
	set, err := svc.RebuildModules(ctx, sum.Run.ID, th)
	if err != nil {
		t.Fatalf("RebuildModules: %v", err)
	}
	if set.ID == before.ID || len(set.Modules) != 1 || set.Modules[0].Regulator != "A" {
		t.Fatalf("set = %+v", set)
	}
	if len(rec.updates) != 2 || rec.updates[1] != 1 {
		t.Fatalf("updates = %v", rec.updates)
	}

	th.MinGenesPerModule = 10
	if _, err := svc.RebuildModules(ctx, sum.Run.ID, th); !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
	if _, err := svc.RebuildModules(ctx, 999, th); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRebuildModules_KeepsRunLayout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	spec := toySpec(t)
	spec.Layout = "circular"
	sum, err := svc.Run(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Run.Layout != "circular" {
		t.Fatalf("run layout = %q", sum.Run.Layout)
	}

	th := modules.DefaultThresholds()
	th.MinGenesPerModule = 2
	if _, err := svc.RebuildModules(ctx, sum.Run.ID, th); err != nil {
		t.Fatalf("RebuildModules: %v", err)
	}
	raw, err := svc.artifacts.Read(ArtifactPrefix(sum.Run.ID) + "/network.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var out struct {
		Layout string `json:"layout"`
		Links  []any  `json:"links"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Layout != "circular" || len(out.Links) != 2 {
		t.Fatalf("artifact layout=%q links=%d", out.Layout, len(out.Links))
	}
}

func TestRun_DefaultLayoutRecorded(t *testing.T) {
	svc, _ := newTestService(t)
	spec := toySpec(t)
	spec.Layout = ""
	sum, err := svc.Run(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Run.Layout != "force" {
		t.Fatalf("run layout = %q", sum.Run.Layout)
	}
}

func TestRun_NoModulesStillStored(t *testing.T) {
	svc, _ := newTestService(t)
	spec := toySpec(t)
	spec.Thresholds.MinGenesPerModule = 50

	sum, err := svc.Run(context.Background(), spec)
	if !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
	if sum == nil || sum.Run.NModels != 3 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRun_BadInputs(t *testing.T) {
	svc, _ := newTestService(t)
	spec := toySpec(t)
	spec.Association = "nope"
	if _, err := svc.Run(context.Background(), spec); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	spec = toySpec(t)
	spec.Layout = "spiral"
	if _, err := svc.Run(context.Background(), spec); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for layout, got %v", err)
	}
	spec = toySpec(t)
	spec.Inputs.Genome = spec.Inputs.Genome + ".missing"
	if _, err := svc.Run(context.Background(), spec); err == nil {
		t.Fatal("expected error for missing genome")
	}
}
