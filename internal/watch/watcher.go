package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xjet/xjet/internal/clockutil"
	"github.com/xjet/xjet/internal/discovery"
	"github.com/xjet/xjet/internal/logging"
)

// DefaultDebounce is the default debounce window between a filesystem event
// and the handler running, per spec §4.8.
const DefaultDebounce = 400 * time.Millisecond

// Engine ties the dependency Graph to a recursive fsnotify watcher and
// debounced change handler, invoking exec with the set of suites to re-run.
type Engine struct {
	rootDir  string
	patterns *discovery.Patterns
	graph    *Graph
	debounce time.Duration

	// testFiles maps a relative test file path back to its logical suite
	// key, so the debounced handler can report which suites to re-run.
	testFiles map[string]string

	exec func(marked map[string]string)

	mu        sync.Mutex
	pending   map[string]bool
	stopTimer func()
}

// NewEngine builds an Engine over the given suite map (logical key ->
// relative path), seeding the dependency graph from those test files.
func NewEngine(rootDir string, patterns *discovery.Patterns, suites map[string]string, tsconfig *TSConfig, exec func(marked map[string]string)) *Engine {
	graph := NewGraph(rootDir, tsconfig)
	testFiles := make(map[string]string, len(suites))
	files := make([]string, 0, len(suites))
	for key, rel := range suites {
		testFiles[rel] = key
		files = append(files, rel)
	}
	graph.Init(files)

	return &Engine{
		rootDir:   rootDir,
		patterns:  patterns,
		graph:     graph,
		debounce:  DefaultDebounce,
		testFiles: testFiles,
		exec:      exec,
		pending:   make(map[string]bool),
	}
}

// Graph exposes the engine's dependency graph, e.g. so a caller can check
// a re-run's bundle fingerprint against the last one seen for a suite.
func (e *Engine) Graph() *Graph { return e.graph }

// Run starts the recursive watcher over rootDir and blocks until ctx is
// cancelled or the watcher fails.
func (e *Engine) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addRecursive(w, e.rootDir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			e.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Warnf(ctx, "watch: %v", err)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (e *Engine) handleEvent(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(e.rootDir, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if e.patterns.MatchesExclude(rel) {
		return
	}

	e.mu.Lock()
	e.pending[rel] = true
	if e.stopTimer != nil {
		e.stopTimer()
	}
	e.stopTimer = clockutil.AfterFunc(e.debounce, func() { e.flush(ctx) })
	e.mu.Unlock()
}

// flush is the debounced handler: spec §4.8's three-step algorithm.
func (e *Engine) flush(ctx context.Context) {
	e.mu.Lock()
	changed := e.pending
	e.pending = make(map[string]bool)
	e.mu.Unlock()

	marked := make(map[string]string)

	for file := range changed {
		if _, err := os.Stat(filepath.Join(e.rootDir, file)); os.IsNotExist(err) {
			e.graph.RemoveFromGraph(file)
			delete(e.testFiles, file)
			continue
		}

		if e.isSuiteFile(file) {
			e.graph.UpdateGraph(file, true)
			if key, ok := e.testFiles[file]; ok {
				marked[key] = file
			}
			continue
		}

		if e.graph.IsTestFile(file) {
			continue
		}
		dependents := e.graph.Dependents(file)
		if len(dependents) == 0 {
			continue
		}
		e.graph.UpdateGraph(file, false)
		for _, dep := range dependents {
			if key, ok := e.testFiles[dep]; ok {
				marked[key] = dep
			}
		}
	}

	if len(marked) > 0 {
		logging.Infof(ctx, "watch: re-running %d suite(s)", len(marked))
		e.exec(marked)
	}
}

func (e *Engine) isSuiteFile(rel string) bool {
	if e.patterns.MatchesExclude(rel) {
		return false
	}
	return e.patterns.MatchesSuites(rel) && e.patterns.MatchesFiles(rel)
}
