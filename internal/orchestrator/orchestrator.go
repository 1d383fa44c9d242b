// Package orchestrator implements the Suite Orchestrator (spec §4.7): the
// top-level coordinator that discovers suites, bundles them, drives a
// Target through a run, reports results, and optionally keeps the process
// alive under the Watch Engine.
package orchestrator

import (
	"context"
	"math/rand"
	"sort"

	"github.com/segmentio/ksuid"

	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/discovery"
	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/reporter"
	"github.com/xjet/xjet/internal/router"
	"github.com/xjet/xjet/internal/runner"
	"github.com/xjet/xjet/internal/runnersvc"
	"github.com/xjet/xjet/internal/sourcemap"
	"github.com/xjet/xjet/internal/target"
	"github.com/xjet/xjet/internal/watch"
)

// Exit codes per spec §4.7 step 11.
const (
	ExitOK          = 0
	ExitHasError    = 1
	ExitSuiteError  = 2
)

// Options bundles the inputs a Run needs beyond the loaded Config.
type Options struct {
	Config  *config.Config
	RootDir string
	Bundler Bundler
}

// Run executes the full orchestration flow and returns the process exit
// code the caller should use.
func Run(ctx context.Context, opts Options) (int, error) {
	runID := ksuid.New().String()
	ctx = logging.SetLogPrefix(ctx, "["+runID+"] ")

	cfg := opts.Config
	bundler := opts.Bundler
	if bundler == nil {
		bundler = PassthroughBundler{}
	}

	patterns, err := discovery.Compile(cfg.Files(), cfg.Suites(), cfg.Exclude())
	if err != nil {
		return ExitHasError, err
	}

	files, err := discovery.Discover(opts.RootDir, patterns)
	if err != nil {
		return ExitHasError, err
	}
	if len(files) == 0 {
		return ExitHasError, errors.NewKind(errors.KindUserConfig, "orchestrator: no suites matched files/suites patterns")
	}

	tgt, err := buildTarget(cfg)
	if err != nil {
		return ExitHasError, err
	}

	if err := tgt.Init(ctx); err != nil {
		return ExitHasError, errors.Wrap(err, "orchestrator: target init failed")
	}

	rep, err := reporter.Resolve(cfg.Reporter(), cfg.LogLevel(), cfg.OutputFile())
	if err != nil {
		return ExitHasError, errors.Wrap(err, "orchestrator: failed to resolve reporter")
	}

	registry := sourcemap.NewRegistry()
	msgs := router.New(tgt, registry, rep)
	msgs.Attach(ctx)

	rep.Init(paths(files), runnerNames(tgt))

	exec := func(marked map[string]string) {
		runOnce(ctx, cfg, tgt, bundler, opts.RootDir, marked)
	}

	exec(files)
	rep.Finish()

	if cfg.Watch() {
		tsconfig, tsErr := watch.LoadTSConfig(opts.RootDir)
		if tsErr != nil {
			logging.Errorf(ctx, "orchestrator: failed to load tsconfig.json: %v", tsErr)
			tsconfig = &watch.TSConfig{}
		}
		var engine *watch.Engine
		engine = watch.NewEngine(opts.RootDir, patterns, files, tsconfig, func(marked map[string]string) {
			runOnceWatched(ctx, cfg, tgt, bundler, opts.RootDir, marked, engine.Graph())
			rep.Finish()
		})
		if err := engine.Run(ctx); err != nil {
			logging.Errorf(ctx, "orchestrator: watch engine stopped: %v", err)
		}
	}

	if err := tgt.Free(ctx); err != nil {
		logging.Errorf(ctx, "orchestrator: target free failed: %v", err)
	}

	switch {
	case msgs.HasSuiteError():
		return ExitSuiteError, nil
	case msgs.HasError():
		return ExitHasError, nil
	default:
		return ExitOK, nil
	}
}

// runOnce bundles marked and dispatches them against tgt, logging (not
// terminating the process) on a bundle error, matching spec §4.7's
// propagation policy: bundle errors are fatal to that run but a reporter
// hook failure or suite failure is not.
func runOnce(ctx context.Context, cfg *config.Config, tgt target.Target, bundler Bundler, rootDir string, marked map[string]string) {
	if err := tgt.SetSuites(marked); err != nil {
		logging.Errorf(ctx, "orchestrator: %v", err)
		return
	}

	bundleMap, err := bundler.Transpile(rootDir, marked, cfg.Build())
	if err != nil {
		logging.Errorf(ctx, "orchestrator: bundling failed: %v", err)
		return
	}

	order := orderedKeys(bundleMap)
	if cfg.Randomize() {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	if err := tgt.ExecuteSuites(ctx, toBundles(order, bundleMap)); err != nil {
		logging.Errorf(ctx, "orchestrator: execute_suites failed: %v", err)
	}
}

// runOnceWatched is runOnce plus bundle fingerprint logging for re-runs
// triggered by the Watch Engine: the digest never gates dispatch (a
// scheduled re-run always executes) but is surfaced for diagnosing a
// watcher firing on a touched-but-reverted file.
func runOnceWatched(ctx context.Context, cfg *config.Config, tgt target.Target, bundler Bundler, rootDir string, marked map[string]string, graph *watch.Graph) {
	if err := tgt.SetSuites(marked); err != nil {
		logging.Errorf(ctx, "orchestrator: %v", err)
		return
	}

	bundleMap, err := bundler.Transpile(rootDir, marked, cfg.Build())
	if err != nil {
		logging.Errorf(ctx, "orchestrator: bundling failed: %v", err)
		return
	}

	order := orderedKeys(bundleMap)
	for _, key := range order {
		if !graph.FingerprintChanged(key, bundleMap[key]) {
			logging.Debugf(ctx, "orchestrator: suite %s bundle content unchanged, re-running anyway", key)
		}
	}

	if err := tgt.ExecuteSuites(ctx, toBundles(order, bundleMap)); err != nil {
		logging.Errorf(ctx, "orchestrator: execute_suites failed: %v", err)
	}
}

// orderedKeys returns bundleMap's logical keys sorted, giving randomize a
// deterministic starting order to shuffle from.
func orderedKeys(bundleMap map[string][]byte) []string {
	keys := make([]string, 0, len(bundleMap))
	for k := range bundleMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toBundles converts bundleMap to the dispatch-ordered slice ExecuteSuites
// expects, walking order so a prior randomize shuffle's effect survives.
func toBundles(order []string, bundleMap map[string][]byte) []target.Bundle {
	out := make([]target.Bundle, 0, len(order))
	for _, key := range order {
		out = append(out, target.Bundle{LogicalKey: key, Data: bundleMap[key]})
	}
	return out
}

func buildTarget(cfg *config.Config) (target.Target, error) {
	runners := cfg.TestRunners()
	if len(runners) == 0 {
		return target.NewLocalTarget(cfg, ReferenceSandbox{}), nil
	}

	rs := make([]runner.Runner, 0, len(runners))
	for _, rc := range runners {
		rs = append(rs, runnersvc.NewClient(rc.ID, rc.Name, rc.Address, rc.Command, rc.ConnectionTimeoutMS, rc.DispatchTimeoutMS))
	}
	return target.NewExternalTarget(cfg, rs), nil
}

func paths(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for _, p := range files {
		out = append(out, p)
	}
	return out
}

func runnerNames(tgt target.Target) []string {
	runners := tgt.Runners()
	out := make([]string, 0, len(runners))
	for _, r := range runners {
		out = append(out, r.Name())
	}
	return out
}
