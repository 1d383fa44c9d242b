package router_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/protocol"
	"github.com/xjet/xjet/internal/reporter"
	"github.com/xjet/xjet/internal/router"
	"github.com/xjet/xjet/internal/sourcemap"
	"github.com/xjet/xjet/internal/target"
	"github.com/xjet/xjet/internal/xjet"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load(\"\") error = %v", err)
	}
	return cfg
}

// recordingReporter captures every hook call it receives.
type recordingReporter struct {
	reporter.BaseReporter
	logs        []reporter.LogMessage
	suiteStarts []reporter.SuiteEvent
	suiteEnds   []reporter.SuiteEvent
	testStarts  []reporter.SuiteEvent
	testEnds    []reporter.SuiteEvent
}

func (r *recordingReporter) Log(msg reporter.LogMessage)       { r.logs = append(r.logs, msg) }
func (r *recordingReporter) SuiteStart(ev reporter.SuiteEvent) { r.suiteStarts = append(r.suiteStarts, ev) }
func (r *recordingReporter) SuiteEnd(ev reporter.SuiteEvent)   { r.suiteEnds = append(r.suiteEnds, ev) }
func (r *recordingReporter) TestStart(ev reporter.SuiteEvent)  { r.testStarts = append(r.testStarts, ev) }
func (r *recordingReporter) TestEnd(ev reporter.SuiteEvent)    { r.testEnds = append(r.testEnds, ev) }

// scriptedRunner emits a fixed sequence of frames built by frameFn, which
// receives the suite_id/runner_id the target assigned so payloads can
// reference them.
type scriptedRunner struct {
	frameFn func(rc xjet.RuntimeContext) [][]byte
}

func (r scriptedRunner) Run(ctx context.Context, bundle []byte, rc xjet.RuntimeContext, dispatch func([]byte)) error {
	for _, frame := range r.frameFn(rc) {
		dispatch(frame)
	}
	return nil
}

func statusFrame(rc xjet.RuntimeContext, typ protocol.StatusType, ancestry, desc string, dur uint32) []byte {
	hdr := protocol.Header{SuiteID: rc.SuiteID, RunnerID: rc.RunnerID, Timestamp: "2024-01-01T00:00:00.000Z"}
	frame, _ := protocol.Encode(protocol.KindStatus, hdr, &protocol.StatusPayload{
		Type: typ, Ancestry: ancestry, Description: desc, DurationMS: dur,
	})
	return frame
}

func eventsFrame(rc xjet.RuntimeContext, typ protocol.StatusType, ancestry, desc string, passed bool, dur uint32, errs string) []byte {
	hdr := protocol.Header{SuiteID: rc.SuiteID, RunnerID: rc.RunnerID, Timestamp: "2024-01-01T00:00:00.000Z"}
	frame, _ := protocol.Encode(protocol.KindEvents, hdr, &protocol.EventsPayload{
		Type: typ, Passed: passed, Ancestry: ancestry, Description: desc, DurationMS: dur, Errors: errs,
	})
	return frame
}

func logFrame(rc xjet.RuntimeContext, message, ancestry string) []byte {
	hdr := protocol.Header{SuiteID: rc.SuiteID, RunnerID: rc.RunnerID, Timestamp: "2024-01-01T00:00:00.000Z"}
	frame, _ := protocol.Encode(protocol.KindLog, hdr, &protocol.LogPayload{
		Level: 3, Message: message, Ancestry: ancestry,
	})
	return frame
}

func errorFrame(rc xjet.RuntimeContext, errJSON string) []byte {
	hdr := protocol.Header{SuiteID: rc.SuiteID, RunnerID: rc.RunnerID, Timestamp: "2024-01-01T00:00:00.000Z"}
	frame, _ := protocol.Encode(protocol.KindError, hdr, &protocol.ErrorPayload{Error: errJSON})
	return frame
}

func TestRouterMapsStatusLifecycle(t *testing.T) {
	cfg := loadConfig(t)
	runner := scriptedRunner{frameFn: func(rc xjet.RuntimeContext) [][]byte {
		return [][]byte{
			statusFrame(rc, protocol.StatusStartSuite, "", "", 0),
			statusFrame(rc, protocol.StatusDescribe, "", "outer", 0),
			statusFrame(rc, protocol.StatusTestStart, "outer", "does a thing", 0),
			statusFrame(rc, protocol.StatusEndSuite, "", "", 42),
		}
	}}
	lt := target.NewLocalTarget(cfg, runner)
	if err := lt.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}

	rec := &recordingReporter{}
	rt := router.New(lt, sourcemap.NewRegistry(), rec)
	rt.Attach(context.Background())

	if err := lt.ExecuteSuites(context.Background(), []target.Bundle{{LogicalKey: "a", Data: []byte("// noop")}}); err != nil {
		t.Fatalf("ExecuteSuites() error = %v", err)
	}

	if len(rec.suiteStarts) != 1 {
		t.Fatalf("suiteStarts = %d, want 1", len(rec.suiteStarts))
	}
	if len(rec.testStarts) != 1 {
		t.Fatalf("testStarts = %d, want 1", len(rec.testStarts))
	}
	if got := rec.testStarts[0].Ancestry; len(got) != 1 || got[0] != "outer" {
		t.Errorf("ancestry = %v, want [outer]", got)
	}
	if len(rec.suiteEnds) != 1 || rec.suiteEnds[0].DurationMS != 42 {
		t.Fatalf("suiteEnds = %+v, want one with DurationMS=42", rec.suiteEnds)
	}
}

func TestRouterEventsSetsHasErrorOnFailure(t *testing.T) {
	cfg := loadConfig(t)
	errJSON, _ := json.Marshal(map[string]string{"name": "AssertionError", "message": "expected true"})
	runner := scriptedRunner{frameFn: func(rc xjet.RuntimeContext) [][]byte {
		return [][]byte{
			statusFrame(rc, protocol.StatusStartSuite, "", "", 0),
			eventsFrame(rc, protocol.StatusTestStart, "", "fails", false, 3, string(errJSON)),
			statusFrame(rc, protocol.StatusEndSuite, "", "", 3),
		}
	}}
	lt := target.NewLocalTarget(cfg, runner)
	if err := lt.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}

	rec := &recordingReporter{}
	rt := router.New(lt, sourcemap.NewRegistry(), rec)
	rt.Attach(context.Background())

	if err := lt.ExecuteSuites(context.Background(), []target.Bundle{{LogicalKey: "a", Data: []byte("// noop")}}); err != nil {
		t.Fatalf("ExecuteSuites() error = %v", err)
	}

	if !rt.HasError() {
		t.Errorf("HasError() = false, want true")
	}
	if len(rec.testEnds) != 1 {
		t.Fatalf("testEnds = %d, want 1", len(rec.testEnds))
	}
	if rec.testEnds[0].Passed {
		t.Errorf("Passed = true, want false when errors are present")
	}
	if len(rec.testEnds[0].Errors) != 1 || rec.testEnds[0].Errors[0].Name != "AssertionError" {
		t.Errorf("Errors = %+v, want one AssertionError", rec.testEnds[0].Errors)
	}
}

func TestRouterErrorPacketSetsHasSuiteError(t *testing.T) {
	cfg := loadConfig(t)
	errJSON, _ := json.Marshal(map[string]string{"name": "TypeError", "message": "x is not a function"})
	runner := scriptedRunner{frameFn: func(rc xjet.RuntimeContext) [][]byte {
		return [][]byte{
			statusFrame(rc, protocol.StatusStartSuite, "", "", 0),
			errorFrame(rc, string(errJSON)),
		}
	}}
	lt := target.NewLocalTarget(cfg, runner)
	if err := lt.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}

	rec := &recordingReporter{}
	rt := router.New(lt, sourcemap.NewRegistry(), rec)
	rt.Attach(context.Background())

	if err := lt.ExecuteSuites(context.Background(), []target.Bundle{{LogicalKey: "a", Data: []byte("// noop")}}); err != nil {
		t.Fatalf("ExecuteSuites() error = %v", err)
	}

	if !rt.HasSuiteError() {
		t.Errorf("HasSuiteError() = false, want true")
	}
	if len(rec.suiteEnds) != 1 {
		t.Fatalf("suiteEnds = %d, want 1", len(rec.suiteEnds))
	}
	if len(rec.suiteEnds[0].Errors) != 1 || rec.suiteEnds[0].Errors[0].Name != "TypeError" {
		t.Errorf("Errors = %+v, want one TypeError", rec.suiteEnds[0].Errors)
	}
}

func TestRouterLogResolvesAndForwards(t *testing.T) {
	cfg := loadConfig(t)
	runner := scriptedRunner{frameFn: func(rc xjet.RuntimeContext) [][]byte {
		return [][]byte{
			logFrame(rc, "hello from suite", "outer,inner"),
		}
	}}
	lt := target.NewLocalTarget(cfg, runner)
	if err := lt.SetSuites(map[string]string{"a": "a.test.ts"}); err != nil {
		t.Fatalf("SetSuites() error = %v", err)
	}

	rec := &recordingReporter{}
	rt := router.New(lt, sourcemap.NewRegistry(), rec)
	rt.Attach(context.Background())

	if err := lt.ExecuteSuites(context.Background(), []target.Bundle{{LogicalKey: "a", Data: []byte("// noop")}}); err != nil {
		t.Fatalf("ExecuteSuites() error = %v", err)
	}

	if len(rec.logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(rec.logs))
	}
	if got := rec.logs[0].Ancestry; len(got) != 2 || got[0] != "outer" || got[1] != "inner" {
		t.Errorf("ancestry = %v, want [outer inner]", got)
	}
	if rec.logs[0].Message != "hello from suite" {
		t.Errorf("message = %q", rec.logs[0].Message)
	}
}

func TestNormalizeAncestry(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"empty", "", 0},
		{"single", "describe", 1},
		{"comma", "a,b,c", 3},
		{"trailingComma", "a,b,", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := router.NormalizeAncestry(tc.raw)
			if len(got) != tc.want {
				t.Errorf("NormalizeAncestry(%q) = %v, want len %d", tc.raw, got, tc.want)
			}
		})
	}
}
