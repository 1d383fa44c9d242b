package sourcemap_test

import (
	"testing"

	"github.com/xjet/xjet/internal/sourcemap"
)

const sampleMap = `{
  "version": 3,
  "sources": ["src/foo.ts"],
  "names": ["bar"],
  "mappings": "AAAA,OAAOA"
}`

func TestSetFromStringIdempotent(t *testing.T) {
	r := sourcemap.NewRegistry()

	if err := r.SetFromString(sampleMap, "./dist/foo.js"); err != nil {
		t.Fatalf("SetFromString() error = %v", err)
	}
	first, ok := r.Lookup("dist/foo.js")
	if !ok {
		t.Fatalf("Lookup() after first insert: not found")
	}

	if err := r.SetFromString(sampleMap, "./dist/foo.js"); err != nil {
		t.Fatalf("second SetFromString() error = %v", err)
	}
	second, ok := r.Lookup("dist/foo.js")
	if !ok {
		t.Fatalf("Lookup() after second insert: not found")
	}

	if first != second {
		t.Errorf("SetFromString called twice did not retain the original Map instance")
	}
}

func TestSetFromStringIgnoresEmptyMappings(t *testing.T) {
	r := sourcemap.NewRegistry()
	empty := `{"version":3,"sources":[],"names":[],"mappings":""}`

	if err := r.SetFromString(empty, "empty.js"); err != nil {
		t.Fatalf("SetFromString() error = %v", err)
	}
	if _, ok := r.Lookup("empty.js"); ok {
		t.Errorf("Lookup() found an entry for an empty-mappings source map")
	}
}

func TestResolveFindsClosestMapping(t *testing.T) {
	m, err := sourcemap.Parse(sampleMap)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pos, ok := m.Resolve(0, 8)
	if !ok {
		t.Fatalf("Resolve() found nothing")
	}
	if pos.Source != "src/foo.ts" {
		t.Errorf("Resolve().Source = %q, want src/foo.ts", pos.Source)
	}
}
