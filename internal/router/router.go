// Package router implements the Message Router (spec §4.5): it subscribes
// to a target's log/error/status/events packets, resolves source
// positions and stack traces, and forwards normalized messages to a
// reporter. Reporters never see raw wire packets.
package router

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/protocol"
	"github.com/xjet/xjet/internal/reporter"
	"github.com/xjet/xjet/internal/sourcemap"
	"github.com/xjet/xjet/internal/stackfmt"
	"github.com/xjet/xjet/internal/target"
)

// Router wires one target's packet stream to one reporter.
type Router struct {
	ctx      context.Context
	target   target.Target
	registry *sourcemap.Registry
	rep      reporter.Reporter

	hasError      int32 // atomic bool: any test/describe reported errors
	hasSuiteError int32 // atomic bool: any suite-level fatal error
}

// New returns a Router that has not yet subscribed to t. Call Attach to
// begin routing.
func New(t target.Target, registry *sourcemap.Registry, rep reporter.Reporter) *Router {
	return &Router{target: t, registry: registry, rep: rep, ctx: context.Background()}
}

// Attach subscribes to every packet kind t emits. ctx is retained for
// logging calls made from listener callbacks, which carry no context of
// their own.
func (r *Router) Attach(ctx context.Context) {
	r.ctx = ctx
	r.target.On(target.EventLog, r.handleLog)
	r.target.On(target.EventError, r.handleError)
	r.target.On(target.EventStatus, r.handleStatus)
	r.target.On(target.EventEvents, r.handleEvents)
}

// HasError reports whether any test or describe block reported an error.
func (r *Router) HasError() bool { return atomic.LoadInt32(&r.hasError) != 0 }

// HasSuiteError reports whether any suite failed at the suite level
// (uncaught exception, bail-triggering failure, dispatch timeout).
func (r *Router) HasSuiteError() bool { return atomic.LoadInt32(&r.hasSuiteError) != 0 }

func (r *Router) runnerName(runnerID string) string {
	if runnerID == "" {
		return ""
	}
	name, err := r.target.RunnerName(runnerID)
	if err != nil {
		return runnerID
	}
	return name
}

// NormalizeAncestry accepts the wire format's comma-delimited ancestry
// string (spec Design Notes §9, unresolved behavior (b)): an empty string
// yields no ancestry, and any other value is split on commas with empty
// segments dropped, so callers that already emit a single non-delimited
// token ("" delimiter) still normalize correctly.
func NormalizeAncestry(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *Router) handleLog(path string, pkt *protocol.Packet) {
	if pkt.Log == nil {
		return
	}
	lvl := logging.Level(pkt.Log.Level)

	msg := reporter.LogMessage{
		Level:     lvl.String(),
		LevelID:   pkt.Log.Level,
		Suite:     path,
		Runner:    r.runnerName(pkt.RunnerID),
		Message:   pkt.Log.Message,
		Ancestry:  NormalizeAncestry(pkt.Log.Ancestry),
		Timestamp: pkt.Timestamp,
	}

	if pkt.Log.Invocation.Source != "" {
		line, col, source := int(pkt.Log.Invocation.Line), int(pkt.Log.Invocation.Column), pkt.Log.Invocation.Source
		if m, ok := r.registry.Lookup(source); ok {
			if pos, ok := m.Resolve(line, col); ok {
				line, col, source = pos.Line, pos.Column, pos.Source
			}
		}
		msg.Invocation = &reporter.Invocation{Line: uint32(line), Column: uint32(col), Source: source}
	}

	r.rep.Log(msg)
}

func (r *Router) handleError(path string, pkt *protocol.Packet) {
	if pkt.Error == nil {
		return
	}
	atomic.StoreInt32(&r.hasSuiteError, 1)

	// Defensive: the target already completes the suite on an Error
	// packet; this call is a no-op against an already-resolved handle.
	r.target.CompleteSuite(pkt.RunnerID+pkt.SuiteID, true)

	errs := decodeErrors(pkt.Error.Error)
	for i := range errs {
		errs[i].Formatted = formatWireError(r.registry, errs[i])
	}

	r.rep.SuiteEnd(reporter.SuiteEvent{
		Suite:      path,
		Runner:     r.runnerName(pkt.RunnerID),
		DurationMS: 0,
		Errors:     errs,
		Timestamp:  pkt.Timestamp,
	})
}

func (r *Router) handleStatus(path string, pkt *protocol.Packet) {
	if pkt.Status == nil {
		return
	}
	ev := reporter.SuiteEvent{
		Suite:       path,
		Runner:      r.runnerName(pkt.RunnerID),
		Ancestry:    NormalizeAncestry(pkt.Status.Ancestry),
		Description: pkt.Status.Description,
		DurationMS:  pkt.Status.DurationMS,
		Todo:        pkt.Status.Todo,
		Skipped:     pkt.Status.Skipped,
		Timestamp:   pkt.Timestamp,
	}

	switch pkt.Status.Type {
	case protocol.StatusStartSuite:
		r.rep.SuiteStart(ev)
	case protocol.StatusEndSuite:
		r.rep.SuiteEnd(ev)
		// Defensive: already completed by the target's decodeAndRoute.
		r.target.CompleteSuite(pkt.RunnerID+pkt.SuiteID, false)
	case protocol.StatusTestStart:
		r.rep.TestStart(ev)
	case protocol.StatusDescribe:
		r.rep.DescribeStart(ev)
	case protocol.StatusCompileSuite:
		logging.Debugf(r.ctx, "router: suite %s compiling", path)
	}
}

func (r *Router) handleEvents(path string, pkt *protocol.Packet) {
	if pkt.Events == nil {
		return
	}
	errs := decodeErrors(pkt.Events.Errors)
	for i := range errs {
		errs[i].Formatted = formatWireError(r.registry, errs[i])
	}

	passed := pkt.Events.Passed && len(errs) == 0
	if len(errs) > 0 {
		atomic.StoreInt32(&r.hasError, 1)
	}

	ev := reporter.SuiteEvent{
		Suite:       path,
		Runner:      r.runnerName(pkt.RunnerID),
		Ancestry:    NormalizeAncestry(pkt.Events.Ancestry),
		Description: pkt.Events.Description,
		DurationMS:  pkt.Events.DurationMS,
		Passed:      passed,
		Errors:      errs,
		Timestamp:   pkt.Timestamp,
	}

	switch pkt.Events.Type {
	case protocol.StatusDescribe:
		r.rep.DescribeEnd(ev)
	default:
		r.rep.TestEnd(ev)
	}
}

// decodeErrors implements the error decode contract: JSON parse the raw
// payload; if it is an array, decode element-wise; if parsing fails, the
// parse failure itself becomes a structured error so the pipeline never
// silently loses a failure. An empty string decodes to no errors.
func decodeErrors(raw string) []reporter.WireError {
	if raw == "" {
		return nil
	}

	var single reporter.WireError
	if err := json.Unmarshal([]byte(raw), &single); err == nil && (single.Name != "" || single.Message != "") {
		return []reporter.WireError{single}
	}

	var arr []reporter.WireError
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr
	}

	return []reporter.WireError{{
		Name:    "ParseError",
		Message: "failed to decode error payload: " + raw,
	}}
}

// formatWireError runs the error's stack through the stack formatter with
// the router's fixed snippet window (spec §4.5: linesBefore=2, linesAfter=3).
func formatWireError(reg *sourcemap.Registry, e reporter.WireError) string {
	frames := stackfmt.ParseV8Stack(e.Stack)
	if len(frames) == 0 {
		return e.Message
	}
	res := stackfmt.Format(frames, reg, stackfmt.Options{
		LinesBefore: 2,
		LinesAfter:  3,
	})
	if res.FormattedCode != "" {
		return e.Message + "\n" + res.FormattedCode
	}
	return e.Message
}
