package assoc

import (
	"errors"
	"reflect"
	"testing"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/genome"
	"github.com/starford/regnet/internal/models"
)

func fixture(t *testing.T) ([]models.Gene, *genome.Index) {
	t.Helper()
	genes := []models.Gene{
		{Name: "G1", Chrom: "chr1", Start: 1_000, End: 5_000, Strand: '+'},
		{Name: "G2", Chrom: "chr1", Start: 20_000, End: 30_000, Strand: '-'}, // TSS 29_999
		{Name: "G3", Chrom: "chr2", Start: 500, End: 900, Strand: '+'},
	}
	regions := []models.Region{
		{ID: "r0", Chrom: "chr1", Start: 900, End: 1_100},   // covers G1 TSS
		{ID: "r1", Chrom: "chr1", Start: 12_000, End: 12_500},
		{ID: "r2", Chrom: "chr1", Start: 31_000, End: 31_200}, // just upstream of G2
		{ID: "r3", Chrom: "chr2", Start: 100_000, End: 100_100},
	}
	idx, err := genome.NewIndex(regions)
	if err != nil {
		t.Fatal(err)
	}
	return genes, idx
}

func TestByName(t *testing.T) {
	for _, name := range []string{NameNearest, NameWindow, NameDomain} {
		s, err := ByName(name, DefaultParams())
		if err != nil {
			t.Fatalf("ByName(%s): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("Name() = %s, want %s", s.Name(), name)
		}
	}
	if _, err := ByName("great", DefaultParams()); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown strategy err = %v", err)
	}
}

func TestWindow_StrandAware(t *testing.T) {
	genes, idx := fixture(t)
	links := Window{Upstream: 2_000, Downstream: 500}.Associate(genes, idx)
	if !reflect.DeepEqual(links["G1"], []int{0}) {
		t.Errorf("G1 = %v, want [0]", links["G1"])
	}
	// G2 is on the minus strand, so upstream lies at higher coordinates.
	if !reflect.DeepEqual(links["G2"], []int{2}) {
		t.Errorf("G2 = %v, want [2]", links["G2"])
	}
	if _, ok := links["G3"]; ok {
		t.Errorf("G3 should have no regions, got %v", links["G3"])
	}
}

func TestNearest_AssignsEveryRegionOnce(t *testing.T) {
	genes, idx := fixture(t)
	links := Nearest{}.Associate(genes, idx)
	want := Links{"G1": {0, 1}, "G2": {2}, "G3": {3}}
	if !reflect.DeepEqual(links, want) {
		t.Fatalf("links = %v, want %v", links, want)
	}

	capped := Nearest{MaxDistance: 5_000}.Associate(genes, idx)
	if !reflect.DeepEqual(capped["G1"], []int{0}) {
		t.Errorf("capped G1 = %v, want [0]", capped["G1"])
	}
	if _, ok := capped["G3"]; ok {
		t.Error("G3 region is too far with MaxDistance")
	}
}

func TestNearest_TieBreakByName(t *testing.T) {
	genes := []models.Gene{
		{Name: "B", Chrom: "chr1", Start: 100, End: 200, Strand: '+'},
		{Name: "A", Chrom: "chr1", Start: 300, End: 400, Strand: '+'},
	}
	idx, _ := genome.NewIndex([]models.Region{{ID: "mid", Chrom: "chr1", Start: 190, End: 210}})
	links := Nearest{}.Associate(genes, idx)
	// TSS 100 is 90 bp away, TSS 300 is 91 bp away: B wins on distance.
	if _, ok := links["B"]; !ok {
		t.Fatalf("links = %v, want B", links)
	}

	idx2, _ := genome.NewIndex([]models.Region{{ID: "eq", Chrom: "chr1", Start: 200, End: 201}})
	links = Nearest{}.Associate(genes, idx2)
	// 100 bp from both TSSs: name order decides.
	if _, ok := links["A"]; !ok {
		t.Fatalf("links = %v, want A on tie", links)
	}
}

func TestDomain_ExtendsToNeighbours(t *testing.T) {
	genes, idx := fixture(t)
	links := Domain{BasalUp: 5_000, BasalDown: 1_000, Extension: 1_000_000}.Associate(genes, idx)
	// r1 lies between G1 and G2 and falls into both extended domains.
	if !reflect.DeepEqual(links["G1"], []int{0, 1}) {
		t.Errorf("G1 = %v", links["G1"])
	}
	if !reflect.DeepEqual(links["G2"], []int{1, 2}) {
		t.Errorf("G2 = %v", links["G2"])
	}
	if !reflect.DeepEqual(links["G3"], []int{3}) {
		t.Errorf("G3 = %v", links["G3"])
	}

	tight := Domain{BasalUp: 5_000, BasalDown: 1_000, Extension: 2_000}.Associate(genes, idx)
	if !reflect.DeepEqual(tight["G1"], []int{0}) {
		t.Errorf("tight G1 = %v", tight["G1"])
	}
}
