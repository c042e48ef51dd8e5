package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestFile_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("a: 1\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = File(ctx, path, 150*time.Millisecond, quietLogger(), func(context.Context) { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("a: 2\n"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() >= 1 },
		"change not reported")
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 for one burst", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFile_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("a: 1\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = File(ctx, path, 50*time.Millisecond, quietLogger(), func(context.Context) { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1\n"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestFile_RenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("a: 1\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = File(ctx, path, 50*time.Millisecond, quietLogger(), func(context.Context) { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, ".config.yaml.swp")
	_ = os.WriteFile(tmp, []byte("a: 3\n"), 0o644)
	_ = os.Rename(tmp, path)

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() >= 1 },
		"rename replace not reported")
}

type fakeRebuilder struct {
	mu      sync.Mutex
	latest  *store.RunRow
	err     error
	applied []modules.Thresholds
}

func (f *fakeRebuilder) LatestRun(context.Context) (*store.RunRow, error) {
	if f.latest == nil {
		return nil, apperr.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeRebuilder) RebuildModules(_ context.Context, runID int64, th modules.Thresholds) (*store.ModuleSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.applied = append(f.applied, th)
	return &store.ModuleSet{ID: int64(len(f.applied)), RunID: runID, Thresholds: th, Modules: []models.Module{{Regulator: "A"}}}, nil
}

func TestThresholds_RebuildsOnlyOnChange(t *testing.T) {
	base := modules.DefaultThresholds()
	next := base
	svc := &fakeRebuilder{latest: &store.RunRow{ID: 7}}
	tr := NewThresholds(base, func() (modules.Thresholds, error) { return next, nil }, svc, quietLogger())
	ctx := context.Background()

	if err := tr.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(svc.applied) != 0 {
		t.Fatalf("unchanged thresholds rebuilt %d times", len(svc.applied))
	}

	next.PValueMax = 0.01
	if err := tr.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(svc.applied) != 1 || svc.applied[0].PValueMax != 0.01 {
		t.Fatalf("applied = %+v", svc.applied)
	}
	if tr.Current().PValueMax != 0.01 {
		t.Errorf("current = %+v", tr.Current())
	}

	// Same thresholds again: no second rebuild.
	_ = tr.Apply(ctx)
	if len(svc.applied) != 1 {
		t.Errorf("applied = %d, want 1", len(svc.applied))
	}
}

func TestThresholds_InvalidConfigKeepsCurrent(t *testing.T) {
	base := modules.DefaultThresholds()
	svc := &fakeRebuilder{latest: &store.RunRow{ID: 1}}
	loadErr := errors.New("config validation failed")
	tr := NewThresholds(base, func() (modules.Thresholds, error) { return modules.Thresholds{}, loadErr }, svc, quietLogger())

	if err := tr.Apply(context.Background()); !errors.Is(err, loadErr) {
		t.Fatalf("err = %v", err)
	}
	if tr.Current() != base || len(svc.applied) != 0 {
		t.Errorf("current = %+v applied = %d", tr.Current(), len(svc.applied))
	}
}

func TestThresholds_NoRun(t *testing.T) {
	next := modules.DefaultThresholds()
	next.MinGenesPerModule = 1
	svc := &fakeRebuilder{}
	tr := NewThresholds(modules.DefaultThresholds(), func() (modules.Thresholds, error) { return next, nil }, svc, quietLogger())

	if err := tr.Apply(context.Background()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tr.Current() != next {
		t.Errorf("thresholds not recorded: %+v", tr.Current())
	}
}

func TestThresholds_NoModulesStillRecorded(t *testing.T) {
	next := modules.DefaultThresholds()
	next.MinGenesPerModule = 100
	svc := &fakeRebuilder{latest: &store.RunRow{ID: 1}, err: apperr.ErrNoModules}
	tr := NewThresholds(modules.DefaultThresholds(), func() (modules.Thresholds, error) { return next, nil }, svc, quietLogger())

	if err := tr.Apply(context.Background()); !errors.Is(err, apperr.ErrNoModules) {
		t.Fatalf("err = %v", err)
	}
	if tr.Current() != next {
		t.Errorf("thresholds not recorded: %+v", tr.Current())
	}
}
