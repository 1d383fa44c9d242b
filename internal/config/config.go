// Package config defines the frozen configuration shape the orchestrator
// consumes, and loads it from a declarative YAML or JSON file validated
// against a JSON Schema. Per the design notes, this replaces the original
// system's "evaluate a JS module as config" mechanism: configuration here
// is pure data, never executable code.
package config

import (
	"github.com/xjet/xjet/internal/logging"
)

// LogLevel re-exports logging.Level under the config vocabulary so callers
// of this package don't need to import internal/logging directly.
type LogLevel = logging.Level

// Re-exported log level constants for convenience in config literals.
const (
	LogSilent = logging.LevelSilent
	LogError  = logging.LevelError
	LogWarn   = logging.LevelWarn
	LogInfo   = logging.LevelInfo
	LogDebug  = logging.LevelDebug
)

// BuildOpts controls how the (out-of-scope) bundler/transpiler collaborator
// is invoked, mirroring the §4.7 step 6 options the orchestrator passes
// through untouched plus the banner/footer/inject additions it appends.
type BuildOpts struct {
	Minify    bool     `yaml:"minify" json:"minify"`
	Target    string   `yaml:"target" json:"target"`
	External  []string `yaml:"external" json:"external"`
	Sourcemap bool     `yaml:"sourcemap" json:"sourcemap"`
}

// RunnerConfig is the declarative description of one external test runner,
// loaded from the config file. At runtime this is turned into a
// runner.Runner via internal/runnersvc.
type RunnerConfig struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
	// Command, if set, is a shell-style connection string (parsed with
	// mattn/go-shellwords) naming a local process to spawn before dialing
	// Address, e.g. "node ./runner.js --port=4000".
	Command             string `yaml:"command" json:"command"`
	ConnectionTimeoutMS int    `yaml:"connectionTimeoutMs" json:"connectionTimeoutMs"`
	DispatchTimeoutMS   int    `yaml:"dispatchTimeoutMs" json:"dispatchTimeoutMs"`
}

// mutable holds every configuration field. It is populated by Load and then
// wrapped in an immutable Config; nothing outside this package ever sees a
// *mutable value, so once a Config is returned from Load its fields cannot
// be mutated by a caller.
type mutable struct {
	Files        []string       `yaml:"files" json:"files"`
	Suites       []string       `yaml:"suites" json:"suites"`
	Filter       []string       `yaml:"filter" json:"filter"`
	Exclude      []string       `yaml:"exclude" json:"exclude"`
	Bail         bool           `yaml:"bail" json:"bail"`
	Watch        bool           `yaml:"watch" json:"watch"`
	Parallel     int            `yaml:"parallel" json:"parallel"`
	TimeoutMS    int            `yaml:"timeoutMs" json:"timeoutMs"`
	Randomize    bool           `yaml:"randomize" json:"randomize"`
	LogLevelName string         `yaml:"logLevel" json:"logLevel"`
	Reporter     string         `yaml:"reporter" json:"reporter"`
	OutputFile   string         `yaml:"outputFile" json:"outputFile"`
	TestRunners  []RunnerConfig `yaml:"testRunners" json:"testRunners"`
	Build        BuildOpts      `yaml:"build" json:"build"`
	Verbose      bool           `yaml:"verbose" json:"verbose"`
	UserArgv     map[string]interface{} `yaml:"userArgv" json:"userArgv"`
}

// Config is the immutable, parsed configuration the orchestrator consumes.
type Config struct {
	m *mutable
}

// Files returns the include glob patterns.
func (c *Config) Files() []string { return append([]string(nil), c.m.Files...) }

// Suites returns the suite-name glob patterns.
func (c *Config) Suites() []string { return append([]string(nil), c.m.Suites...) }

// Filter returns the test-name filters.
func (c *Config) Filter() []string { return append([]string(nil), c.m.Filter...) }

// Exclude returns the exclude glob patterns.
func (c *Config) Exclude() []string { return append([]string(nil), c.m.Exclude...) }

// Bail reports whether the run should stop after the first suite-level
// failure.
func (c *Config) Bail() bool { return c.m.Bail }

// Watch reports whether the orchestrator should start the watch engine
// after the initial run.
func (c *Config) Watch() bool { return c.m.Watch }

// Parallel is the maximum number of suites dispatched concurrently.
func (c *Config) Parallel() int {
	if c.m.Parallel < 1 {
		return 1
	}
	return c.m.Parallel
}

// Timeout is the per-suite dispatch timeout.
func (c *Config) Timeout() int { return c.m.TimeoutMS }

// Randomize reports whether suite dispatch order should be shuffled.
func (c *Config) Randomize() bool { return c.m.Randomize }

// LogLevel is the configured minimum log severity.
func (c *Config) LogLevel() LogLevel {
	if lvl, ok := logging.ParseLevel(c.m.LogLevelName); ok {
		return lvl
	}
	return LogInfo
}

// Reporter is the reporter spec: "spec", "json", "junit", or a module path.
func (c *Config) Reporter() string { return c.m.Reporter }

// OutputFile is the path JSON/JUnit reporters write their output to, or ""
// if unset.
func (c *Config) OutputFile() string { return c.m.OutputFile }

// TestRunners is the list of configured external runners. Empty unless the
// run uses the External Target.
func (c *Config) TestRunners() []RunnerConfig {
	return append([]RunnerConfig(nil), c.m.TestRunners...)
}

// Build is the options forwarded to the bundler collaborator.
func (c *Config) Build() BuildOpts { return c.m.Build }

// Verbose reports whether framework frames should be shown in stack
// traces regardless of the stack formatter's default filtering.
func (c *Config) Verbose() bool { return c.m.Verbose }

// UserArgv is the parsed user-defined CLI options schema/defaults, passed
// through to external runners' connect().
func (c *Config) UserArgv() map[string]interface{} {
	out := make(map[string]interface{}, len(c.m.UserArgv))
	for k, v := range c.m.UserArgv {
		out[k] = v
	}
	return out
}

// defaults returns the built-in configuration defaults, applied before a
// config file is merged in.
func defaults() *mutable {
	return &mutable{
		Parallel:     1,
		TimeoutMS:    5000,
		LogLevelName: "info",
		Reporter:     "spec",
		Build: BuildOpts{
			Target:    "es2020",
			Sourcemap: true,
		},
	}
}
