package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/regnet/internal/apperr"
)

func tempArtifacts(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempArtifacts(t)
	content := []byte(`{"nodes":[]}`)
	if err := s.Write("network.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("network.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempArtifacts(t)
	if err := s.Write("run-1/network.html", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("run-1/network.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
}

func TestWriteFunc_FailureLeavesNothing(t *testing.T) {
	s := tempArtifacts(t)
	_ = s.Write("graph.html", []byte("old"))

	err := s.WriteFunc("graph.html", func(w io.Writer) error {
		fmt.Fprint(w, "partial")
		return errors.New("render failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	got, _ := s.Read("graph.html")
	if string(got) != "old" {
		t.Errorf("expected old content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	s := tempArtifacts(t)
	_ = s.Write("del.json", []byte("bye"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete("del.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempArtifacts(t)
	_ = s.Write("b.json", []byte("b"))
	_ = s.Write("a.html", []byte("a"))
	_ = s.Write("run/c.html", []byte("c"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 || items[0].Name != "a.html" || items[2].Name != "run/c.html" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Size != 1 || items[0].Checksum == "" {
		t.Errorf("metadata = %+v", items[0])
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempArtifacts(t)
	for _, p := range []string{"../../etc/passwd", "../outside.html", "/etc/shadow"} {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for path %q, got %v", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "regnet-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
