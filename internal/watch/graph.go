// Package watch implements the Watch Engine (spec §4.8): a dependency
// graph over test files and their imports, kept current by a debounced
// filesystem watcher, used to decide which suites to re-run when a file
// changes.
package watch

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/zeebo/blake3"
)

// importRe matches ES module import/export-from specifiers, side-effect
// imports (import './x') and CommonJS require() calls. It is intentionally
// permissive: the watch engine only needs the specifier text, not a full
// parse of the source.
var importRe = regexp.MustCompile(`(?:import|export)[^'"` + "`" + `]*?from\s*['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\)|import\s*['"]([^'"]+)['"]`)

// Graph maintains file -> set<test_file> (reverse reachability) and
// test_file -> direct deps (forward, cached), per spec §4.8.
type Graph struct {
	mu sync.Mutex

	rootDir string
	tsconfig *TSConfig

	// reverse[dep] is the set of test files that transitively depend on dep.
	reverse map[string]map[string]bool
	// direct[testFile] is testFile's cached direct dependency list.
	direct map[string][]string
	// digest[logicalKey] is the last-seen blake3 fingerprint of that
	// suite's bundled bytes, read by the orchestrator's watch re-run path to
	// log whether the bundle's content actually changed; the spec does not
	// allow skipping a scheduled re-run, so this never gates dispatch.
	digest map[string][32]byte
}

// NewGraph creates an empty Graph rooted at rootDir that resolves import
// specifiers through tsconfig's path aliases.
func NewGraph(rootDir string, tsconfig *TSConfig) *Graph {
	return &Graph{
		rootDir:  rootDir,
		tsconfig: tsconfig,
		reverse:  make(map[string]map[string]bool),
		direct:   make(map[string][]string),
		digest:   make(map[string][32]byte),
	}
}

// FingerprintChanged reports whether bundle's blake3 digest differs from
// the last one recorded for logicalKey, and records the new digest.
func (g *Graph) FingerprintChanged(logicalKey string, bundle []byte) bool {
	sum := blake3.Sum256(bundle)
	g.mu.Lock()
	defer g.mu.Unlock()
	prev, ok := g.digest[logicalKey]
	g.digest[logicalKey] = sum
	return !ok || prev != sum
}

// Init builds the graph from scratch for every known test file.
func (g *Graph) Init(testFiles []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, tf := range testFiles {
		g.updateGraphLocked(tf, true)
	}
}

// extractImports parses file's source and resolves each import specifier
// to a slash-separated path relative to rootDir, adding a .ts extension
// when the specifier has none.
func (g *Graph) extractImports(file string) []string {
	data, err := os.ReadFile(filepath.Join(g.rootDir, file))
	if err != nil {
		return nil
	}
	matches := importRe.FindAllStringSubmatch(string(data), -1)
	deps := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		spec := m[1]
		if spec == "" {
			spec = m[2]
		}
		if spec == "" {
			spec = m[3]
		}
		if spec == "" {
			continue
		}
		resolved := g.tsconfig.Resolve(g.rootDir, file, spec)
		rel, err := filepath.Rel(g.rootDir, resolved)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			continue
		}
		seen[rel] = true
		deps = append(deps, rel)
	}
	return deps
}

// IsTestFile reports whether file is currently tracked as a test file (has
// a direct-deps cache entry).
func (g *Graph) IsTestFile(file string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.direct[file]
	return ok
}

// Dependents returns the test files that transitively depend on file.
func (g *Graph) Dependents(file string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.reverse[file]
	out := make([]string, 0, len(set))
	for tf := range set {
		out = append(out, tf)
	}
	return out
}

// UpdateGraph recomputes deps for file per spec §4.8's update_graph: if
// file is itself a test file, its direct deps are recomputed and [file] is
// propagated through them; otherwise file's existing dependents are
// propagated through its newly recomputed deps (used when a non-test
// dependency file changes without a rename).
func (g *Graph) UpdateGraph(file string, isTestFile bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateGraphLocked(file, isTestFile)
}

func (g *Graph) updateGraphLocked(file string, isTestFile bool) {
	deps := g.extractImports(file)
	if isTestFile {
		g.direct[file] = deps
		g.linkDependencyLocked([]string{file}, deps, make(map[string]bool))
		return
	}
	dependents := g.reverse[file]
	if len(dependents) == 0 {
		return
	}
	testFiles := make([]string, 0, len(dependents))
	for tf := range dependents {
		testFiles = append(testFiles, tf)
	}
	g.linkDependencyLocked(testFiles, deps, make(map[string]bool))
}

// linkDependencyLocked adds each of testFiles to reverse[dep] for every dep
// in deps; when a dep's set grows, it recurses into that dep's own direct
// deps (cached), bounded by the visited set so cycles terminate.
func (g *Graph) linkDependencyLocked(testFiles, deps []string, visited map[string]bool) {
	for _, dep := range deps {
		if visited[dep] {
			continue
		}
		set, ok := g.reverse[dep]
		if !ok {
			set = make(map[string]bool)
			g.reverse[dep] = set
		}
		grew := false
		for _, tf := range testFiles {
			if !set[tf] {
				set[tf] = true
				grew = true
			}
		}
		if !grew {
			continue
		}
		visited[dep] = true
		if nested, ok := g.direct[dep]; ok {
			g.linkDependencyLocked(testFiles, nested, visited)
		}
	}
}

// RemoveFromGraph purges file's direct-deps cache entry and removes it
// from every dependent set it appears in, per spec §4.8.
func (g *Graph) RemoveFromGraph(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.direct, file)
	delete(g.reverse, file)
	for _, set := range g.reverse {
		delete(set, file)
	}
}
