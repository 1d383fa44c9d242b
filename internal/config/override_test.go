package config_test

import (
	"testing"

	"github.com/xjet/xjet/internal/config"
)

func TestWithOverridesAppliesOnlyFlaggedFields(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	got := config.WithOverrides(base, config.Overrides{
		HasFiles:    true,
		Files:       []string{"**/*.spec.ts"},
		HasReporter: true,
		Reporter:    "junit",
		Bail:        true,
	})

	if len(got.Files()) != 1 || got.Files()[0] != "**/*.spec.ts" {
		t.Errorf("Files() = %v, want [**/*.spec.ts]", got.Files())
	}
	if got.Reporter() != "junit" {
		t.Errorf("Reporter() = %q, want junit", got.Reporter())
	}
	if !got.Bail() {
		t.Errorf("Bail() = false, want true")
	}
	// Suites was never flagged, so it must remain untouched (empty, from defaults).
	if len(got.Suites()) != 0 {
		t.Errorf("Suites() = %v, want untouched/empty", got.Suites())
	}
}

func TestWithOverridesSilentSetsLogLevel(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	got := config.WithOverrides(base, config.Overrides{Silent: true})
	if got.LogLevel() != config.LogSilent {
		t.Errorf("LogLevel() = %v, want LogSilent", got.LogLevel())
	}
}

func TestWithOverridesMergesUserArgvOverConfigDefaults(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	// base has no userArgv at all; an override should still take effect.
	got := config.WithOverrides(base, config.Overrides{
		UserArgv: map[string]interface{}{"headless": "true"},
	})
	argv := got.UserArgv()
	if argv["headless"] != "true" {
		t.Errorf("UserArgv()[headless] = %v, want %q", argv["headless"], "true")
	}
}

func TestWithOverridesDoesNotMutateBaseConfig(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	_ = config.WithOverrides(base, config.Overrides{HasFiles: true, Files: []string{"x.test.ts"}})
	if len(base.Files()) != 0 {
		t.Errorf("base.Files() = %v after WithOverrides, want untouched", base.Files())
	}
}
