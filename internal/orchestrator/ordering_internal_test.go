package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/runner"
	"github.com/xjet/xjet/internal/target"
)

// recordingTarget is a target.Target test double that records the exact
// []target.Bundle slice ExecuteSuites was called with, so ordering
// (including a randomize shuffle) is directly observable.
type recordingTarget struct {
	suites map[string]string
	got    []target.Bundle
}

func (t *recordingTarget) Init(ctx context.Context) error       { return nil }
func (t *recordingTarget) Free(ctx context.Context) error       { return nil }
func (t *recordingTarget) Runners() []runner.Runner             { return nil }
func (t *recordingTarget) RunnerName(id string) (string, error) { return "local", nil }
func (t *recordingTarget) SetSuites(files map[string]string) error {
	t.suites = files
	return nil
}
func (t *recordingTarget) ExecuteSuites(ctx context.Context, bundles []target.Bundle) error {
	t.got = bundles
	return nil
}
func (t *recordingTarget) On(event target.Event, listener target.Listener) {}
func (t *recordingTarget) CompleteSuite(key string, hadError bool)         {}
func (t *recordingTarget) GenerateID() string                              { return "id" }

func writeOrderingSuite(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(full, []byte("// "+rel), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestRunOnceDispatchesEveryMarkedSuiteExactlyOnce(t *testing.T) {
	root := t.TempDir()
	marked := map[string]string{}
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		rel := key + ".test.ts"
		writeOrderingSuite(t, root, rel)
		marked[key] = rel
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg = config.WithOverrides(cfg, config.Overrides{Randomize: true})

	rt := &recordingTarget{}
	runOnce(context.Background(), cfg, rt, PassthroughBundler{}, root, marked)

	if len(rt.got) != len(marked) {
		t.Fatalf("ExecuteSuites received %d bundles, want %d", len(rt.got), len(marked))
	}

	gotKeys := make([]string, len(rt.got))
	for i, b := range rt.got {
		gotKeys[i] = b.LogicalKey
	}
	sort.Strings(gotKeys)

	wantKeys := make([]string, 0, len(marked))
	for k := range marked {
		wantKeys = append(wantKeys, k)
	}
	sort.Strings(wantKeys)

	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("got keys = %v, want %v", gotKeys, wantKeys)
	}
	for i := range gotKeys {
		if gotKeys[i] != wantKeys[i] {
			t.Errorf("got keys = %v, want %v", gotKeys, wantKeys)
			break
		}
	}
}

func TestRunOnceWithoutRandomizeDispatchesInSortedOrder(t *testing.T) {
	root := t.TempDir()
	marked := map[string]string{}
	for _, key := range []string{"c", "a", "b"} {
		rel := key + ".test.ts"
		writeOrderingSuite(t, root, rel)
		marked[key] = rel
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	rt := &recordingTarget{}
	runOnce(context.Background(), cfg, rt, PassthroughBundler{}, root, marked)

	want := []string{"a", "b", "c"}
	if len(rt.got) != len(want) {
		t.Fatalf("ExecuteSuites received %d bundles, want %d", len(rt.got), len(want))
	}
	for i, b := range rt.got {
		if b.LogicalKey != want[i] {
			t.Errorf("dispatch order = %v, want %v", rt.got, want)
			break
		}
	}
}
