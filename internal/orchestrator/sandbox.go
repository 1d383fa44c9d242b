package orchestrator

import (
	"context"
	"time"

	"github.com/xjet/xjet/internal/protocol"
	"github.com/xjet/xjet/internal/xjet"
)

// ReferenceSandbox is the BundleRunner the orchestrator wires into the
// Local Target by default. A real sandbox would evaluate the bundle's
// transpiled JavaScript inside a VM context; that collaborator is out of
// scope (Non-goals: "implementing a bundler" extends to the runtime that
// would execute its output). This reference stub instead emits the
// StartSuite/TestEnd/EndSuite lifecycle for a single synthetic passing
// test per suite, which is enough to exercise every other component
// (router, reporters, stats, watch) end-to-end, the same role
// cmd/xjet-runner plays for the External Target.
type ReferenceSandbox struct{}

// Run satisfies target.BundleRunner.
func (ReferenceSandbox) Run(ctx context.Context, bundle []byte, rc xjet.RuntimeContext, dispatch func([]byte)) error {
	RunReference(ctx, bundle, rc.SuiteID, rc.RunnerID, dispatch)
	return nil
}

// RunReference implements the shared reference execution used by both the
// Local Target (in-process) and cmd/xjet-runner (over runnersvc): it emits
// a StartSuite, one passing TestEnd, then EndSuite for bundle.
func RunReference(ctx context.Context, bundle []byte, suiteID, runnerID string, emit func(frame []byte)) {
	hdr := protocol.Header{SuiteID: suiteID, RunnerID: runnerID, Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z")}

	start, _ := protocol.Encode(protocol.KindStatus, hdr, &protocol.StatusPayload{Type: protocol.StatusStartSuite})
	emit(start)

	ev, _ := protocol.Encode(protocol.KindEvents, hdr, &protocol.EventsPayload{
		Type:        protocol.StatusTestStart,
		Passed:      true,
		DurationMS:  0,
		Description: "bundle executes",
	})
	emit(ev)

	end, _ := protocol.Encode(protocol.KindStatus, hdr, &protocol.StatusPayload{Type: protocol.StatusEndSuite})
	emit(end)
}
