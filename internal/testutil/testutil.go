// Package testutil provides shared test helpers: a toy paired dataset with
// a known regulatory structure, temporary stores and artifact directories.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/regnet/internal/fasta"
	"github.com/starford/regnet/internal/grn"
	"github.com/starford/regnet/internal/matrix"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/motif"
	"github.com/starford/regnet/internal/storage"
	"github.com/starford/regnet/internal/store"
)

// TestStore creates a temporary SQLite database that is automatically cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "regnet-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArtifacts creates a temporary artifact directory with a storage.Provider.
func TestArtifacts(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Toy assay keys.
const (
	ExpressionKey    = "rna"
	AccessibilityKey = "atac"
)

// Motif consensus sequences of the toy regulators.
const (
	SiteA = "ACGTAC"
	SiteB = "TTGCAA"
)

const toyCells = 60

// Toy is a paired dataset with two regions (chr1 and chr2), two regulators
// (A bound in the chr1 region, B in the chr2 region) and three annotated
// targets: G1 and G2 driven by A, G3 driven by B.
type Toy struct {
	Dataset *grn.Dataset
	Genome  *fasta.Genome
	Catalog []motif.PFM
	Mapping motif.Mapping
	// Sequences are the FASTA records of Genome.
	Sequences map[string]string
}

func wave(phase float64) []float64 {
	v := make([]float64, toyCells)
	for c := range v {
		v[c] = 2 + math.Sin(float64(c)*0.7+phase)
	}
	return v
}

// Consensus returns a PFM that counts 10 for the given base at every position.
func Consensus(id, name, seq string) motif.PFM {
	p := motif.PFM{ID: id, Name: name, Counts: make([][4]float64, len(seq))}
	for i, b := range strings.ToUpper(seq) {
		p.Counts[i][strings.IndexRune("ACGT", b)] = 10
	}
	return p
}

// ToyData returns the toy dataset.
func ToyData(t *testing.T) *Toy {
	t.Helper()
	cells := make([]string, toyCells)
	for c := range cells {
		cells[c] = fmt.Sprintf("cell%02d", c)
	}
	a, b := wave(0), wave(1.3)
	r1, r2 := wave(2.1), wave(0.4)
	g1 := make([]float64, toyCells)
	g2 := make([]float64, toyCells)
	g3 := make([]float64, toyCells)
	for c := range g1 {
		noise := 0.01 * math.Cos(float64(c)*3.1)
		g1[c] = 3*a[c]*r1[c] + noise
		g2[c] = 1 + 2*a[c]*r1[c] - noise
		g3[c] = 2.5*b[c]*r2[c] + noise
	}

	expr, err := matrix.FromRows([]string{"A", "B", "G1", "G2", "G3"}, cells, [][]float64{a, b, g1, g2, g3})
	if err != nil {
		t.Fatal(err)
	}
	access, err := matrix.FromRows([]string{"chr1:1000-1010", "chr2:1000-1010"}, cells, [][]float64{r1, r2})
	if err != nil {
		t.Fatal(err)
	}

	seqs := map[string]string{
		"chr1": strings.Repeat("N", 1002) + SiteA + strings.Repeat("N", 2000),
		"chr2": strings.Repeat("N", 1002) + SiteB + strings.Repeat("N", 2000),
	}
	catalog := []motif.PFM{Consensus("MA0001.1", "A", SiteA), Consensus("MA0002.1", "B", SiteB)}
	return &Toy{
		Dataset: &grn.Dataset{
			Assays: map[string]*matrix.Matrix{ExpressionKey: expr, AccessibilityKey: access},
			Genes: []models.Gene{
				{Name: "G1", Chrom: "chr1", Start: 2000, End: 2500, Strand: '+'},
				{Name: "G2", Chrom: "chr1", Start: 2500, End: 3000, Strand: '-'},
				{Name: "G3", Chrom: "chr2", Start: 1500, End: 2500, Strand: '+'},
			},
		},
		Genome:    fasta.FromMap(seqs),
		Catalog:   catalog,
		Mapping:   motif.FromCatalog(catalog),
		Sequences: seqs,
	}
}

// ToyFiles are the toy dataset written in the on-disk input formats.
type ToyFiles struct {
	Dir           string
	Expression    string
	Accessibility string
	Genes         string
	Genome        string
	Motifs        string
	MotifMap      string
}

// WriteToyFiles writes the toy dataset into a temp directory.
func WriteToyFiles(t *testing.T) *ToyFiles {
	t.Helper()
	toy := ToyData(t)
	dir := t.TempDir()
	f := &ToyFiles{
		Dir:           dir,
		Expression:    filepath.Join(dir, "rna.tsv"),
		Accessibility: filepath.Join(dir, "atac.tsv"),
		Genes:         filepath.Join(dir, "genes.bed"),
		Genome:        filepath.Join(dir, "genome.fa"),
		Motifs:        filepath.Join(dir, "motifs.jaspar"),
		MotifMap:      filepath.Join(dir, "motif2tf.tsv"),
	}
	write := func(path, content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(f.Expression, assayTSV(toy.Dataset.Assays[ExpressionKey]))
	write(f.Accessibility, assayTSV(toy.Dataset.Assays[AccessibilityKey]))

	var b strings.Builder
	for _, g := range toy.Dataset.Genes {
		fmt.Fprintf(&b, "%s\t%d\t%d\t%s\t0\t%c\n", g.Chrom, g.Start, g.End, g.Name, g.Strand)
	}
	write(f.Genes, b.String())

	b.Reset()
	for _, chrom := range []string{"chr1", "chr2"} {
		fmt.Fprintf(&b, ">%s\n", chrom)
		seq := toy.Sequences[chrom]
		for i := 0; i < len(seq); i += 60 {
			fmt.Fprintln(&b, seq[i:min(i+60, len(seq))])
		}
	}
	write(f.Genome, b.String())

	b.Reset()
	for _, p := range toy.Catalog {
		fmt.Fprintf(&b, ">%s\t%s\n", p.ID, p.Name)
		for base, letter := range "ACGT" {
			fmt.Fprintf(&b, "%c  [", letter)
			for _, col := range p.Counts {
				fmt.Fprintf(&b, " %g", col[base])
			}
			fmt.Fprintln(&b, " ]")
		}
	}
	write(f.Motifs, b.String())

	write(f.MotifMap, "motif\tregulator\nMA0001.1\tA\nMA0002.1\tB\n")
	return f
}

func assayTSV(m *matrix.Matrix) string {
	var b strings.Builder
	b.WriteString("feature")
	for _, c := range m.Cells() {
		b.WriteString("\t" + c)
	}
	b.WriteByte('\n')
	for _, f := range m.Features() {
		row, _ := m.Row(f)
		b.WriteString(f)
		for _, v := range row {
			fmt.Fprintf(&b, "\t%g", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
