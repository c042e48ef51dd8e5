package parser

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/regnet/internal/apperr"
)

func TestParseBED(t *testing.T) {
	input := "track name=peaks\n# comment\nchr1\t100\t200\n" +
		"chr2\t5\t10\tpeakB\t0\t+\nchr3\t1\t2\t.\n"
	regs, err := ParseBED(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseBED: %v", err)
	}
	if len(regs) != 3 {
		t.Fatalf("regions = %+v", regs)
	}
	if regs[0].ID != "chr1:100-200" || regs[0].Start != 100 || regs[0].End != 200 {
		t.Errorf("first = %+v", regs[0])
	}
	if regs[1].ID != "peakB" || regs[1].Chrom != "chr2" {
		t.Errorf("named = %+v", regs[1])
	}
	if regs[2].ID != "chr3:1-2" {
		t.Errorf("dot name = %+v", regs[2])
	}
}

func TestParseBED_Invalid(t *testing.T) {
	for _, input := range []string{
		"chr1\t100\n",
		"chr1\tx\t200\n",
		"chr1\t200\t100\n",
		"chr1\t-5\t10\n",
	} {
		if _, err := ParseBED(strings.NewReader(input)); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%q: err = %v, want ErrInvalidInput", input, err)
		}
	}
}

func TestParseGenes(t *testing.T) {
	input := "chr1\t2000\t2500\tG1\t0\t+\n" +
		"chr1\t2500\t3000\tG2\t0\t-\n" +
		"chr2\t10\t20\tG3\n" +
		"chr9\t1\t5\tG1\t0\t-\n"
	genes, err := ParseGenes(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseGenes: %v", err)
	}
	if len(genes) != 3 {
		t.Fatalf("genes = %+v", genes)
	}
	if genes[0].Chrom != "chr1" || genes[0].Strand != '+' {
		t.Errorf("G1 = %+v (first record should win)", genes[0])
	}
	if genes[1].Strand != '-' || genes[1].TSS() != 2999 {
		t.Errorf("G2 = %+v tss=%d", genes[1], genes[1].TSS())
	}
	if genes[2].Strand != '+' {
		t.Errorf("G3 default strand = %c", genes[2].Strand)
	}

	if _, err := ParseGenes(strings.NewReader("chr1\t1\t2\n")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("missing name: err = %v", err)
	}
}

func TestParseAssay(t *testing.T) {
	input := "feature\tc1\tc2\tc3\n" +
		"# skipped\n" +
		"G1\t1\t2\t3\n" +
		"G2\t0\t-1e-2\t4.5\n"
	m, err := ParseAssay(strings.NewReader(input), '\t')
	if err != nil {
		t.Fatalf("ParseAssay: %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 3 {
		t.Fatalf("dims = %d x %d", r, c)
	}
	if got := m.Cells(); got[0] != "c1" || got[2] != "c3" {
		t.Errorf("cells = %v", got)
	}
	row, ok := m.Row("G2")
	if !ok || row[1] != -0.01 || row[2] != 4.5 {
		t.Errorf("G2 = %v", row)
	}
}

func TestParseAssay_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"no cells":   "feature\n",
		"short row":  "f\tc1\tc2\nG1\t1\n",
		"non-number": "f\tc1\nG1\tabc\n",
		"NA":         "f\tc1\tc2\nG1\t1\tNA\n",
		"empty cell": "f\tc1\tc2\nG1\t\t2\n",
		"NaN":        "f\tc1\tc2\nG1\t1\tNaN\n",
		"Inf":        "f\tc1\tc2\nG1\t+Inf\t2\n",
	} {
		if _, err := ParseAssay(strings.NewReader(input), '\t'); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

const jaspar = `>MA0004.1	Arnt
A  [ 4 19  0  0 ]
C  [16  0 20  0 ]
G  [ 0  1  0 20 ]
T  [ 0  0  0  0 ]

>MA0006.1
1 0
0 1
0 0
0 0
`

func TestParseJASPAR(t *testing.T) {
	pfms, err := ParseJASPAR(strings.NewReader(jaspar))
	if err != nil {
		t.Fatalf("ParseJASPAR: %v", err)
	}
	if len(pfms) != 2 {
		t.Fatalf("pfms = %d", len(pfms))
	}
	a := pfms[0]
	if a.ID != "MA0004.1" || a.Name != "Arnt" || len(a.Counts) != 4 {
		t.Fatalf("first = %+v", a)
	}
	// Column 0: A=4 C=16 G=0 T=0.
	if a.Counts[0] != [4]float64{4, 16, 0, 0} {
		t.Errorf("column 0 = %v", a.Counts[0])
	}
	if pfms[1].Name != "MA0006.1" || len(pfms[1].Counts) != 2 {
		t.Errorf("bare = %+v", pfms[1])
	}
}

func TestParseJASPAR_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"three rows":    ">M1\n1 2\n3 4\n5 6\n",
		"ragged":        ">M1\n1 2\n3\n5 6\n7 8\n",
		"before header": "1 2 3\n",
		"bad count":     ">M1\nA [ x ]\n",
	} {
		if _, err := ParseJASPAR(strings.NewReader(input)); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestParseMotifMap(t *testing.T) {
	input := "motif\tregulator\nMA0001.1\tA\nMA0001.1\tA2\nMA0002.1\tB\n"
	m, err := ParseMotifMap(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseMotifMap: %v", err)
	}
	if got := m.Regulators(); len(got) != 3 || got[0] != "A" || got[2] != "B" {
		t.Errorf("regulators = %v", got)
	}
	if got := m["MA0001.1"]; len(got) != 2 {
		t.Errorf("MA0001.1 -> %v", got)
	}
	if _, err := ParseMotifMap(strings.NewReader("MA1\n")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("single column: err = %v", err)
	}
}

func TestOpen_Gzip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"peaks.bed.gz", "peaks-no-suffix"} {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		gw := gzip.NewWriter(f)
		_, _ = gw.Write([]byte("chr1\t0\t10\n"))
		_ = gw.Close()
		_ = f.Close()

		regs, err := ParseBEDFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(regs) != 1 || regs[0].End != 10 {
			t.Errorf("%s: regions = %+v", name, regs)
		}
	}
}

func TestParseAssayFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rna.csv")
	_ = os.WriteFile(path, []byte("gene,c1,c2\nG1,1,2\n"), 0o644)
	m, err := ParseAssayFile(path)
	if err != nil {
		t.Fatalf("ParseAssayFile: %v", err)
	}
	if r, c := m.Dims(); r != 1 || c != 2 {
		t.Errorf("dims = %d x %d", r, c)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := ParseGenesFile(filepath.Join(t.TempDir(), "none.bed")); err == nil {
		t.Fatal("expected error")
	}
}
