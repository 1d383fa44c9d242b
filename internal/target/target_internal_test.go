package target

import (
	"testing"

	"github.com/xjet/xjet/internal/config"
)

func newTestBase(t *testing.T) base {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load(\"\") error = %v", err)
	}
	return newBase(cfg)
}

func TestSetSuitesStartsEveryoneQueued(t *testing.T) {
	b := newTestBase(t)
	if err := b.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}
	id := b.idByLogicalKey["a"]
	if got := b.suiteByID[id].State; got != StateQueued {
		t.Errorf("State = %v, want StateQueued", got)
	}
}

func TestSetSuiteStateTransitionsKnownSuite(t *testing.T) {
	b := newTestBase(t)
	if err := b.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}
	id := b.idByLogicalKey["a"]

	b.setSuiteState(id, StateRunning)
	if got := b.suiteByID[id].State; got != StateRunning {
		t.Errorf("State = %v, want StateRunning", got)
	}
}

func TestSetSuiteStateIgnoresUnknownSuiteID(t *testing.T) {
	b := newTestBase(t)
	if err := b.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}
	// Must not panic on an unrecognized suite_id.
	b.setSuiteState("nonexistent", StateRunning)
}

func TestCompleteSuiteMarksCompletedOnResolve(t *testing.T) {
	b := newTestBase(t)
	if err := b.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}
	id := b.idByLogicalKey["a"]

	var resolved bool
	b.registerRunning("runner1", id, func() { resolved = true }, func(error) {})
	b.CompleteSuite("runner1"+id, false)

	if !resolved {
		t.Fatalf("resolve was never called")
	}
	if got := b.suiteByID[id].State; got != StateCompleted {
		t.Errorf("State = %v, want StateCompleted", got)
	}
}

func TestCompleteSuiteMarksFailedOnReject(t *testing.T) {
	b := newTestBase(t)
	if err := b.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}
	id := b.idByLogicalKey["a"]

	var rejected bool
	b.registerRunning("runner1", id, func() {}, func(error) { rejected = true })
	b.CompleteSuite("runner1"+id, true)

	if !rejected {
		t.Fatalf("reject was never called")
	}
	if got := b.suiteByID[id].State; got != StateFailed {
		t.Errorf("State = %v, want StateFailed", got)
	}
}
