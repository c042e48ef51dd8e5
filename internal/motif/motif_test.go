package motif

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

type mapGenome map[string]string

func (g mapGenome) Sequence(chrom string, start, end int) ([]byte, error) {
	s, ok := g[chrom]
	if !ok || end > len(s) {
		return nil, fmt.Errorf("no sequence for %s:%d-%d", chrom, start, end)
	}
	return []byte(s[start:end]), nil
}

// consensus builds a sharp PFM for seq.
func consensus(id, name, seq string) PFM {
	p := PFM{ID: id, Name: name, Counts: make([][4]float64, len(seq))}
	for i := 0; i < len(seq); i++ {
		p.Counts[i][base[seq[i]]] = 20
	}
	return p
}

func TestPWM_BestBothStrands(t *testing.T) {
	w := consensus("M1", "GATA1", "GATAAG").PWM(0.8, UniformBackground)
	s, ok := w.Best([]byte("TTTGATAAGTTT"))
	if !ok || math.Abs(s-1) > 1e-9 {
		t.Fatalf("forward best = %v, %v; want 1", s, ok)
	}
	// Reverse complement of GATAAG is CTTATC.
	s, ok = w.Best([]byte("AACTTATCAA"))
	if !ok || math.Abs(s-1) > 1e-9 {
		t.Fatalf("reverse best = %v, %v; want 1", s, ok)
	}
	s, _ = w.Best([]byte("CCCCCCCC"))
	if s >= 0.8 {
		t.Errorf("unrelated sequence scored %v", s)
	}
	if _, ok := w.Best([]byte("NNNNNNNN")); ok {
		t.Error("all-N sequence must not be scorable")
	}
}

func TestScan_RowsAndRegulatorColumns(t *testing.T) {
	g := mapGenome{"chr1": "AAAAGATAAGAAAAAAAAAACACGTGAAAAAAAAAA"}
	regions := []models.Region{
		{ID: "r1", Chrom: "chr1", Start: 0, End: 12},
		{ID: "r2", Chrom: "chr1", Start: 18, End: 30},
		{ID: "r3", Chrom: "chr1", Start: 30, End: 36},
	}
	catalog := []PFM{
		consensus("MA1", "GATA1", "GATAAG"),
		consensus("MA2", "MYC", "CACGTG"),
		consensus("MA3", "SOX2", "ACAATG"),
	}
	mapping := FromCatalog(catalog)

	m, err := Scan(context.Background(), regions, g, catalog, mapping, ScanOptions{
		Regulators:  []string{"GATA1", "MYC"},
		MinRelScore: 0.9,
		Workers:     3,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	rows, cols := m.Dims()
	if rows != 3 || cols != 2 {
		t.Fatalf("dims = %dx%d, want 3x2", rows, cols)
	}
	for i, r := range regions {
		if m.Regions()[i] != r.ID {
			t.Errorf("row %d = %s, want %s", i, m.Regions()[i], r.ID)
		}
	}
	regs := m.Regulators()
	if len(regs) != 2 || regs[0] != "GATA1" || regs[1] != "MYC" {
		t.Fatalf("regulators = %v", regs)
	}
	if got := m.RegulatorsAt(0); len(got) != 1 || got[0] != "GATA1" {
		t.Errorf("r1 regulators = %v", got)
	}
	if got := m.RegulatorsAt(1); len(got) != 1 || got[0] != "MYC" {
		t.Errorf("r2 regulators = %v", got)
	}
	if got := m.RegulatorsAt(2); len(got) != 0 {
		t.Errorf("r3 regulators = %v", got)
	}
	if _, ok := m.Score(0, 0); !ok {
		t.Error("expected MA1 hit in r1")
	}
}

func TestScan_NoMotifsForRegulators(t *testing.T) {
	catalog := []PFM{consensus("MA1", "GATA1", "GATAAG")}
	_, err := Scan(context.Background(), nil, mapGenome{}, catalog, FromCatalog(catalog), ScanOptions{Regulators: []string{"PAX6"}})
	if !errors.Is(err, apperr.ErrNoMotifs) {
		t.Fatalf("err = %v, want ErrNoMotifs", err)
	}
}

func TestMapping_Restrict(t *testing.T) {
	m := Mapping{}
	m.Add("MA1", "A")
	m.Add("MA1", "B")
	m.Add("MA1", "A")
	m.Add("MA2", "C")
	if len(m["MA1"]) != 2 {
		t.Fatalf("duplicate add not ignored: %v", m["MA1"])
	}
	r := m.Restrict([]string{"B"}, nil)
	if len(r) != 1 || len(r["MA1"]) != 1 || r["MA1"][0] != "B" {
		t.Fatalf("Restrict = %v", r)
	}
	if len(m["MA1"]) != 2 {
		t.Error("Restrict mutated the source mapping")
	}
}
