package modules

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/motif"
)

func model(gene string, r2 float64, terms ...models.Term) *models.GeneModel {
	for i := range terms {
		terms[i].PAdj = terms[i].PValue
	}
	return &models.GeneModel{Gene: gene, RSquared: r2, Terms: terms, NCells: 50}
}

func term(reg, region string, est, p float64) models.Term {
	return models.Term{Regulator: reg, Region: region, Estimate: est, PValue: p}
}

func toyModels() map[string]*models.GeneModel {
	return map[string]*models.GeneModel{
		"G1": model("G1", 0.9, term("A", "r1", 1.5, 1e-8), term("B", "r2", 0.1, 0.6)),
		"G2": model("G2", 0.8, term("A", "r1", -0.9, 1e-5)),
		"G3": model("G3", 0.7, term("B", "r2", 2.0, 1e-6), term("A", "r1", 0.2, 0.3)),
	}
}

func TestBuild_ToyScenario(t *testing.T) {
	th := DefaultThresholds()
	th.MinGenesPerModule = 1

	mods, err := Build(toyModels(), th, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(mods))
	}
	a, ok := Find(mods, "A")
	if !ok || fmt.Sprint(a.Targets) != "[G1 G2]" {
		t.Fatalf("module A = %+v", a)
	}
	if a.Meta.NPositive != 1 || a.Meta.NNegative != 1 {
		t.Fatalf("sign split = %+v", a.Meta)
	}
	if a.Meta.MedianRSquared < 0.849 || a.Meta.MedianRSquared > 0.851 {
		t.Fatalf("median r2 = %v", a.Meta.MedianRSquared)
	}
	b, ok := Find(mods, "B")
	if !ok || fmt.Sprint(b.Targets) != "[G3]" {
		t.Fatalf("module B = %+v", b)
	}
	if got := len(Edges(mods)); got != 3 {
		t.Fatalf("expected 3 edges, got %d", got)
	}
	if b.Meta.MotifEnrichmentP != 1 {
		t.Fatalf("enrichment without context should be 1, got %v", b.Meta.MotifEnrichmentP)
	}
}

func TestBuild_BestTermPerPair(t *testing.T) {
	fitted := map[string]*models.GeneModel{
		"G1": model("G1", 0.5,
			term("A", "r2", 1.0, 1e-3),
			term("A", "r1", 1.0, 1e-3),
			term("A", "r3", 0.5, 1e-6)),
	}
	th := DefaultThresholds()
	th.MinGenesPerModule = 1
	mods, err := Build(fitted, th, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods[0].Edges) != 1 || mods[0].Edges[0].Region != "r3" {
		t.Fatalf("expected single r3 edge, got %+v", mods[0].Edges)
	}

	fitted["G1"].Terms[2].PValue = 0.01
	fitted["G1"].Terms[2].PAdj = 0.01
	mods, err = Build(fitted, th, nil)
	if err != nil {
		t.Fatal(err)
	}
	// equal p and |estimate|: region ID decides
	if mods[0].Edges[0].Region != "r1" {
		t.Fatalf("expected r1 on tie, got %+v", mods[0].Edges)
	}
}

func TestBuild_MaxTargets(t *testing.T) {
	th := DefaultThresholds()
	th.MinGenesPerModule = 1
	th.MaxTargets = 1
	mods, err := Build(toyModels(), th, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := Find(mods, "A")
	if fmt.Sprint(a.Targets) != "[G1]" {
		t.Fatalf("expected strongest target only, got %v", a.Targets)
	}
}

func TestBuild_NoModules(t *testing.T) {
	th := DefaultThresholds()
	th.MinGenesPerModule = 10
	if _, err := Build(toyModels(), th, nil); !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
	th = DefaultThresholds()
	th.PValueMax = 2
	if _, err := Build(toyModels(), th, nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBuild_NonFiniteStatisticsNeverPass(t *testing.T) {
	th := DefaultThresholds()
	th.MinGenesPerModule = 1
	th.MinRSquared = 0

	fitted := toyModels()
	fitted["G4"] = model("G4", math.NaN(), term("A", "r1", math.NaN(), math.NaN()))
	fitted["G5"] = model("G5", 0.9, term("A", "r1", 1.0, math.NaN()))
	fitted["G6"] = model("G6", 0.9, term("A", "r1", math.Inf(1), 1e-9))

	for _, useAdjusted := range []bool{false, true} {
		th.UseAdjusted = useAdjusted
		mods, err := Build(fitted, th, nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		for _, e := range Edges(mods) {
			switch e.Target {
			case "G4", "G5", "G6":
				t.Errorf("adjusted=%v: non-finite edge kept: %+v", useAdjusted, e)
			}
		}
	}

	only := map[string]*models.GeneModel{
		"G4": model("G4", math.NaN(), term("A", "r1", math.NaN(), math.NaN())),
	}
	if _, err := Build(only, th, nil); !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
}

func TestBuild_Monotonic(t *testing.T) {
	fitted := map[string]*models.GeneModel{}
	for g := 0; g < 30; g++ {
		var terms []models.Term
		for r := 0; r < 4; r++ {
			p := float64((g*7+r*13)%100) / 1000
			est := float64((g+r)%5) - 2.5
			terms = append(terms, term(fmt.Sprintf("R%d", r), fmt.Sprintf("p%d", (g+r)%6), est, p))
		}
		gene := fmt.Sprintf("G%02d", g)
		fitted[gene] = model(gene, float64(g%10)/10, terms...)
	}

	strict := Thresholds{PValueMax: 0.02, MinTerms: 4, MinGenesPerModule: 3, MinRSquared: 0.5}
	loose := Thresholds{PValueMax: 0.08, MinTerms: 1, MinGenesPerModule: 1, MinRSquared: 0.2}
	if !loose.Looser(strict) {
		t.Fatal("loose should be looser than strict")
	}

	strictMods, err := Build(fitted, strict, nil)
	if err != nil {
		t.Fatalf("strict: %v", err)
	}
	looseMods, err := Build(fitted, loose, nil)
	if err != nil {
		t.Fatalf("loose: %v", err)
	}
	kept := map[string]bool{}
	for _, e := range Edges(looseMods) {
		kept[e.Regulator+">"+e.Target] = true
	}
	for _, e := range Edges(strictMods) {
		if !kept[e.Regulator+">"+e.Target] {
			t.Fatalf("edge %s>%s lost under looser thresholds", e.Regulator, e.Target)
		}
	}
}

func TestEnrichment_FisherRightTail(t *testing.T) {
	regions := make([]models.Region, 8)
	ids := make([]string, 8)
	rows := make([][]motif.Hit, 8)
	for i := range regions {
		ids[i] = fmt.Sprintf("r%d", i)
		regions[i] = models.Region{ID: ids[i], Chrom: "chr1", Start: i * 1000, End: i*1000 + 100}
		if i < 4 {
			rows[i] = []motif.Hit{{Col: 0, Score: 1}}
		}
	}
	mapping := motif.Mapping{}
	mapping.Add("MA_A", "A")
	matches, err := motif.NewMatches(ids, []string{"MA_A"}, mapping, rows)
	if err != nil {
		t.Fatal(err)
	}
	enr := &Enrichment{
		Regions: regions,
		Matches: matches,
		Links:   assoc.Links{"G1": {0, 1}, "G2": {2, 3}, "G3": {4, 5}, "G4": {6, 7}},
	}
	inModule := enr.pValue("A", []string{"G1", "G2"})
	outside := enr.pValue("A", []string{"G3", "G4"})
	if inModule >= 0.05 {
		t.Fatalf("expected enrichment, p=%v", inModule)
	}
	if outside < 0.9 {
		t.Fatalf("expected no enrichment, p=%v", outside)
	}
}
