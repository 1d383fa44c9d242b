package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xjet/xjet/internal/config"
)

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xjet.config.yaml")
	content := `
files: ["**/*.test.ts"]
bail: true
parallel: 4
logLevel: debug
reporter: junit
outputFile: out/results.xml
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Bail() {
		t.Errorf("Bail() = false, want true")
	}
	if got := cfg.Parallel(); got != 4 {
		t.Errorf("Parallel() = %d, want 4", got)
	}
	if got := cfg.LogLevel(); got != config.LogDebug {
		t.Errorf("LogLevel() = %v, want LogDebug", got)
	}
	if got := cfg.Reporter(); got != "junit" {
		t.Errorf("Reporter() = %q, want junit", got)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xjet.config.yaml")
	if err := os.WriteFile(path, []byte("bogusField: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Errorf("Load() with unknown field succeeded, want schema validation error")
	}
}

func TestDefaultsAloneParallelAtLeastOne(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if got := cfg.Parallel(); got < 1 {
		t.Errorf("Parallel() = %d, want >= 1", got)
	}
}

func TestResolvePrefersExplicitPath(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	got, ok := config.Resolve(dir, explicit)
	if !ok || got != explicit {
		t.Errorf("Resolve() = (%q, %v), want (%q, true)", got, ok, explicit)
	}
}

func TestResolveFindsCandidate(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "xjet.config.json")
	if err := os.WriteFile(candidate, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, ok := config.Resolve(dir, "")
	if !ok || got != candidate {
		t.Errorf("Resolve() = (%q, %v), want (%q, true)", got, ok, candidate)
	}
}
