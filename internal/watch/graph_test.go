package watch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xjet/xjet/internal/watch"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestGraphInitLinksDependency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/math.ts", "export function add(a, b) { return a + b }")
	writeFile(t, root, "a.test.ts", "import { add } from './src/math';\ntest('adds', () => add(1,2));")

	g := watch.NewGraph(root, &watch.TSConfig{})
	g.Init([]string{"a.test.ts"})

	dependents := g.Dependents("src/math.ts")
	if len(dependents) != 1 || dependents[0] != "a.test.ts" {
		t.Errorf("Dependents(src/math.ts) = %v, want [a.test.ts]", dependents)
	}
}

func TestGraphUpdateGraphPropagatesThroughNonTestFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/math.ts", "export const x = 1;")
	writeFile(t, root, "a.test.ts", "import './src/math';")

	g := watch.NewGraph(root, &watch.TSConfig{})
	g.Init([]string{"a.test.ts"})

	writeFile(t, root, "src/math.ts", "export const x = 2; import './helper';")
	writeFile(t, root, "src/helper.ts", "export const y = 1;")

	g.UpdateGraph("src/math.ts", false)

	if !g.IsTestFile("a.test.ts") {
		t.Errorf("a.test.ts should remain a tracked test file")
	}
	dependents := g.Dependents("src/helper.ts")
	if len(dependents) != 1 || dependents[0] != "a.test.ts" {
		t.Errorf("Dependents(helper.ts) = %v, want [a.test.ts]", dependents)
	}
}

func TestGraphRemoveFromGraphPurgesDependents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/math.ts", "export const x = 1;")
	writeFile(t, root, "a.test.ts", "import './src/math';")

	g := watch.NewGraph(root, &watch.TSConfig{})
	g.Init([]string{"a.test.ts"})

	g.RemoveFromGraph("a.test.ts")

	if g.IsTestFile("a.test.ts") {
		t.Errorf("a.test.ts should no longer be tracked")
	}
	if dependents := g.Dependents("src/math.ts"); len(dependents) != 0 {
		t.Errorf("Dependents(src/math.ts) = %v, want none", dependents)
	}
}

func TestGraphFingerprintChanged(t *testing.T) {
	g := watch.NewGraph(t.TempDir(), &watch.TSConfig{})

	if !g.FingerprintChanged("a", []byte("v1")) {
		t.Errorf("first fingerprint should report changed")
	}
	if g.FingerprintChanged("a", []byte("v1")) {
		t.Errorf("unchanged bundle should not report changed")
	}
	if !g.FingerprintChanged("a", []byte("v2")) {
		t.Errorf("changed bundle should report changed")
	}
}

func TestTSConfigResolveAlias(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tsconfig.json", `{"compilerOptions":{"baseUrl":".","paths":{"@lib/*":["src/lib/*"]}}}`)

	cfg, err := watch.LoadTSConfig(root)
	if err != nil {
		t.Fatalf("LoadTSConfig() error = %v", err)
	}

	got := cfg.Resolve(root, "a.test.ts", "@lib/math")
	want := filepath.Join(root, "src/lib/math.ts")
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestTSConfigResolveRelative(t *testing.T) {
	cfg := &watch.TSConfig{}
	got := cfg.Resolve("/root", "sub/a.test.ts", "./helper")
	want := filepath.Clean("/root/sub/helper.ts")
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
