package target

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xjet/xjet/internal/clockutil"
	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/runner"
	"github.com/xjet/xjet/internal/xjet"
)

const (
	defaultConnectTimeout  = 5 * time.Second
	defaultDispatchTimeout = 5 * time.Second
)

// ExternalTarget dispatches bundled suites to a fleet of out-of-process
// runners (§4.4.b).
type ExternalTarget struct {
	base

	mu       sync.Mutex
	runners  []runner.Runner
	connected map[string]runner.Runner // runner_id -> connected Runner
}

// NewExternalTarget creates an ExternalTarget over the given runner set.
// Runners are connected by Init.
func NewExternalTarget(cfg *config.Config, runners []runner.Runner) *ExternalTarget {
	return &ExternalTarget{
		base:      newBase(cfg),
		runners:   runners,
		connected: make(map[string]runner.Runner),
	}
}

// Init connects every configured runner, within connectionTimeoutMs (or a
// 5s default). Connection failures are logged but do not fail Init;
// successfully connected runners are retained. Init fails only if no
// runner is configured at all.
func (t *ExternalTarget) Init(ctx context.Context) error {
	if len(t.runners) == 0 {
		return noRunnersErr()
	}

	var wg sync.WaitGroup
	for _, r := range t.runners {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.connectOne(ctx, r)
		}()
	}
	wg.Wait()
	return nil
}

func (t *ExternalTarget) connectOne(ctx context.Context, r runner.Runner) {
	id := r.ID()
	if id == "" {
		id = t.GenerateID()
	}

	timeout := time.Duration(r.ConnectionTimeoutMS()) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := clockutil.WithTimeout(ctx, timeout)
	defer cancel()

	err := r.Connect(connectCtx, func(frame []byte) {
		t.decodeAndRoute(ctx, frame)
	}, id, t.cfg.UserArgv())
	if err != nil {
		logging.Errorf(ctx, "external target: failed to connect runner %s: %v", r.Name(), err)
		return
	}

	t.mu.Lock()
	t.connected[id] = r
	t.mu.Unlock()
}

// Free disconnects every connected runner in parallel; failures are
// tolerated.
func (t *ExternalTarget) Free(ctx context.Context) error {
	t.mu.Lock()
	runners := make([]runner.Runner, 0, len(t.connected))
	for _, r := range t.connected {
		runners = append(runners, r)
	}
	t.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error {
			if err := r.Disconnect(gctx); err != nil {
				logging.Errorf(ctx, "external target: disconnect %s failed: %v", r.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Runners reports every successfully connected runner.
func (t *ExternalTarget) Runners() []runner.Runner {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]runner.Runner, 0, len(t.connected))
	for _, r := range t.connected {
		out = append(out, r)
	}
	return out
}

// RunnerName resolves runnerID to its configured name.
func (t *ExternalTarget) RunnerName(runnerID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.connected[runnerID]; ok {
		return r.Name(), nil
	}
	return "", unknownRunnerErr(runnerID)
}

// ExecuteSuites enqueues one task per bundle x connected runner, tagged by
// runner_id, and blocks until all dispatches settle; bail clears every
// waiting task, whatever its runner. Dispatch is bounded by
// dispatch_timeout_ms (default 5s); on failure the suite is completed with
// error and a synthesized Error packet is routed locally.
func (t *ExternalTarget) ExecuteSuites(ctx context.Context, bundles []Bundle) error {
	runners := t.Runners()
	if len(runners) == 0 {
		return noRunnersErr()
	}

	var wg sync.WaitGroup
	for _, b := range bundles {
		t.mu.Lock()
		suiteID, ok := t.idByLogicalKey[b.LogicalKey]
		t.mu.Unlock()
		if !ok {
			continue
		}

		for _, r := range runners {
			r := r
			bundle := b.Data
			suiteID := suiteID

			wg.Add(1)
			doneC := make(chan struct{})
			t.registerRunning(r.ID(), suiteID, func() { close(doneC) }, func(error) { close(doneC) })

			resC := t.q.Enqueue(ctx, func(ctx context.Context) (interface{}, error) {
				t.dispatchOne(ctx, r, suiteID, bundle)
				return nil, nil
			}, r.ID())

			go func() { <-doneC }()
			go func() {
				<-resC // also delivered for a task that bail's Clear removed
				wg.Done()
			}()
		}
	}
	t.q.Start(ctx)
	wg.Wait()
	return nil
}

func (t *ExternalTarget) dispatchOne(ctx context.Context, r runner.Runner, suiteID string, bundle []byte) {
	path, _ := t.pathForSuite(suiteID)
	t.setSuiteState(suiteID, StateRunning)

	rc := xjet.RuntimeContext{
		Bail:      t.cfg.Bail(),
		Path:      path,
		Filter:    t.cfg.Filter(),
		TimeoutMS: t.cfg.Timeout(),
		SuiteID:   suiteID,
		RunnerID:  r.ID(),
		Randomize: t.cfg.Randomize(),
	}
	prepared := prependContext(rc, bundle, path)

	timeout := time.Duration(r.DispatchTimeoutMS()) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	dispatchCtx, cancel := clockutil.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.Dispatch(dispatchCtx, prepared, suiteID); err != nil {
		logging.Errorf(ctx, "external target: dispatch to %s failed: %v", r.Name(), err)
		t.CompleteSuite(r.ID()+suiteID, true)
		payload, _ := json.Marshal(map[string]string{
			"name":    "TimeoutError",
			"message": err.Error(),
		})
		t.synthesizeError(ctx, suiteID, r.ID(), string(payload))
	}
}

// prependContext prepends the runtime context declarations ahead of the
// bundle text, per §4.4.b: `__dirname=...; __filename=...;
// globalThis.__XJET = ...; <bundle>`, with __dirname/__filename reflecting
// the suite's original source path.
func prependContext(rc xjet.RuntimeContext, bundle []byte, path string) []byte {
	dirname, _ := json.Marshal(filepath.Dir(path))
	filename, _ := json.Marshal(path)
	ctxJSON, _ := json.Marshal(rc)
	prefix := "__dirname=" + string(dirname) + "; __filename=" + string(filename) + "; globalThis.__XJET = " + string(ctxJSON) + "; "
	out := make([]byte, 0, len(prefix)+len(bundle))
	out = append(out, prefix...)
	out = append(out, bundle...)
	return out
}
