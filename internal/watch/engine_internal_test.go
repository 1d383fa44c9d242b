package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xjet/xjet/internal/discovery"
)

func fakeEvent(path string) fsnotify.Event {
	return fsnotify.Event{Name: path, Op: fsnotify.Write}
}

func writeTestFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestEngineFlushMarksDependentSuite(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "src/math.ts", "export const x = 1;")
	writeTestFile(t, root, "a.test.ts", "import './src/math';")

	patterns, err := discovery.Compile([]string{"**/*.test.ts"}, nil, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var mu sync.Mutex
	var gotMarked map[string]string
	done := make(chan struct{}, 1)

	engine := NewEngine(root, patterns, map[string]string{"a.test": "a.test.ts"}, &TSConfig{}, func(marked map[string]string) {
		mu.Lock()
		gotMarked = marked
		mu.Unlock()
		done <- struct{}{}
	})
	engine.debounce = 10 * time.Millisecond

	engine.handleEvent(context.Background(), fakeEvent(filepath.Join(root, "src/math.ts")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exec was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := gotMarked["a.test"]; !ok {
		t.Errorf("gotMarked = %v, want a.test marked for re-run", gotMarked)
	}
}

func TestEngineFlushRemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.test.ts", "test('x', () => {});")

	patterns, err := discovery.Compile([]string{"**/*.test.ts"}, nil, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	done := make(chan struct{}, 1)
	engine := NewEngine(root, patterns, map[string]string{"a.test": "a.test.ts"}, &TSConfig{}, func(map[string]string) {
		done <- struct{}{}
	})
	engine.debounce = 10 * time.Millisecond

	if err := os.Remove(filepath.Join(root, "a.test.ts")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	engine.handleEvent(context.Background(), fakeEvent(filepath.Join(root, "a.test.ts")))

	time.Sleep(100 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("exec should not be invoked when no suite can be marked after removal")
	default:
	}

	if engine.graph.IsTestFile("a.test.ts") {
		t.Errorf("a.test.ts should have been removed from the graph")
	}
}
