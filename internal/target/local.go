package target

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/idgen"
	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/runner"
	"github.com/xjet/xjet/internal/xjet"
)

// BundleRunner executes one suite bundle in-process. A real implementation
// is supplied by the (out-of-scope) bundler/runtime collaborator; it is the
// Go analogue of evaluating the bundle inside a JS VM context.
type BundleRunner interface {
	// Run executes bundle under rc, using dispatch to feed packet frames
	// back into the target. It must eventually cause an EndSuite or Error
	// packet to be emitted via dispatch for rc.SuiteID.
	Run(ctx context.Context, bundle []byte, rc xjet.RuntimeContext, dispatch func([]byte)) error
}

// localRunner is the target's single built-in "local" runner.Runner,
// satisfying the interface only so it can be listed by Runners(); its
// Connect/Dispatch are not used because LocalTarget drives BundleRunner
// directly in-process.
type localRunner struct {
	id string
}

func (r *localRunner) ID() string                      { return r.id }
func (r *localRunner) Name() string                    { return "local" }
func (r *localRunner) ConnectionTimeoutMS() int         { return 0 }
func (r *localRunner) DispatchTimeoutMS() int           { return 0 }
func (r *localRunner) Connect(context.Context, runner.EmitFunc, string, map[string]interface{}) error {
	return nil
}
func (r *localRunner) Dispatch(context.Context, []byte, string) error { return nil }
func (r *localRunner) Disconnect(context.Context) error               { return nil }

// LocalTarget runs bundled suites inside an in-process sandbox (§4.4.a).
type LocalTarget struct {
	base
	bundles BundleRunner
	rt      *localRunner
}

// NewLocalTarget creates a LocalTarget. bundles supplies the in-process
// bundle execution strategy.
func NewLocalTarget(cfg *config.Config, bundles BundleRunner) *LocalTarget {
	t := &LocalTarget{
		base:    newBase(cfg),
		bundles: bundles,
	}
	t.rt = &localRunner{id: idgen.New(1).ID()}
	return t
}

// Init is a no-op for the local target: there is no connection to
// establish.
func (t *LocalTarget) Init(ctx context.Context) error { return nil }

// Free is a no-op: there is nothing to tear down beyond the queue, which
// has no persistent resources.
func (t *LocalTarget) Free(ctx context.Context) error { return nil }

// Runners reports the target's single "local" runner.
func (t *LocalTarget) Runners() []runner.Runner { return []runner.Runner{t.rt} }

// RunnerName resolves runnerID to "local" if it matches the target's
// built-in runner, and fails otherwise.
func (t *LocalTarget) RunnerName(runnerID string) (string, error) {
	if runnerID == t.rt.id {
		return "local", nil
	}
	return "", errors.NewKind(errors.KindUserConfig, "target: unknown runner id "+runnerID)
}

// ExecuteSuites runs each bundle in its own in-process sandbox task on the
// target's queue, one task per bundle, and blocks until every suite
// completes.
func (t *LocalTarget) ExecuteSuites(ctx context.Context, bundles []Bundle) error {
	var wg sync.WaitGroup
	for _, b := range bundles {
		t.mu.Lock()
		suiteID, ok := t.idByLogicalKey[b.LogicalKey]
		t.mu.Unlock()
		if !ok {
			continue
		}

		wg.Add(1)
		bundle := b.Data
		suiteID := suiteID

		doneC := make(chan error, 1)
		t.registerRunning(t.rt.id, suiteID, func() { doneC <- nil }, func(err error) { doneC <- err })

		resC := t.q.Enqueue(ctx, func(ctx context.Context) (interface{}, error) {
			t.runOne(ctx, suiteID, bundle)
			return nil, nil
		}, t.rt.id)

		go func() {
			<-doneC // result observed for ordering only; failures don't abort other suites unless bail fired
		}()
		go func() {
			<-resC // also delivered for a task that bail's Clear removed
			wg.Done()
		}()
	}
	t.q.Start(ctx)
	wg.Wait()
	return nil
}

func (t *LocalTarget) runOne(ctx context.Context, suiteID string, bundle []byte) {
	path, _ := t.pathForSuite(suiteID)
	t.setSuiteState(suiteID, StateRunning)

	rc := xjet.RuntimeContext{
		Bail:      t.cfg.Bail(),
		Path:      path,
		Filter:    t.cfg.Filter(),
		TimeoutMS: t.cfg.Timeout(),
		SuiteID:   suiteID,
		RunnerID:  t.rt.id,
		Randomize: t.cfg.Randomize(),
	}

	err := t.bundles.Run(ctx, bundle, rc, func(frame []byte) {
		t.decodeAndRoute(ctx, frame)
	})
	if err != nil {
		logging.Errorf(ctx, "local target: suite %s threw: %v", suiteID, err)
		payload, _ := json.Marshal(map[string]string{
			"name":    "Error",
			"message": err.Error(),
		})
		t.synthesizeError(ctx, suiteID, t.rt.id, string(payload))
	}
}
