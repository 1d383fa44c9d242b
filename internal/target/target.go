// Package target implements the Target Abstraction (§4.4): a uniform
// dispatch/collect contract over two concrete implementations, Local (an
// in-process sandbox) and External (a fleet of out-of-process runners).
package target

import (
	"context"
	"sync"
	"time"

	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/idgen"
	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/protocol"
	"github.com/xjet/xjet/internal/queue"
	"github.com/xjet/xjet/internal/runner"
)

// State is a suite's lifecycle state.
type State int

// Suite lifecycle states.
const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Suite is one suite's lifecycle record.
type Suite struct {
	SuiteID    string
	LogicalKey string
	Path       string
	RunnerID   string
	State      State
}

// Event is the kind tag passed to On/emit listeners, mirroring the four
// packet kinds the target routes.
type Event string

// Recognized target events.
const (
	EventLog    Event = "log"
	EventError  Event = "error"
	EventStatus Event = "status"
	EventEvents Event = "events"
)

// Listener receives a decoded packet together with the suite's relative
// path, resolved from the packet's suite_id.
type Listener func(path string, pkt *protocol.Packet)

// Bundle pairs a transpiled suite's bytes with the logical key that
// identifies it, in explicit dispatch order: unlike a map, a []Bundle slice
// lets the orchestrator's randomize pass have an observable effect on the
// order ExecuteSuites iterates suites in.
type Bundle struct {
	LogicalKey string
	Data       []byte
}

// runningSuite is a handle that fulfills exactly once, resolved when a
// suite's EndSuite packet arrives or rejected on a fatal Error packet (or
// timeout/bail).
type runningSuite struct {
	suiteID string
	resolve func()
	reject  func(err error)
	done    chan struct{}
}

// Target is the uniform contract the orchestrator drives regardless of
// whether suites run in-process or on an external runner fleet.
type Target interface {
	Init(ctx context.Context) error
	Free(ctx context.Context) error
	Runners() []runner.Runner
	RunnerName(runnerID string) (string, error)
	// SetSuites clears prior indices and assigns a fresh suite_id to every
	// entry in files (logical key -> relative path).
	SetSuites(files map[string]string) error
	// ExecuteSuites dispatches bundles, in slice order, against every
	// configured runner and blocks until every resulting suite has
	// completed or the run is bailed.
	ExecuteSuites(ctx context.Context, bundles []Bundle) error
	On(event Event, listener Listener)
	CompleteSuite(key string, hadError bool)
	GenerateID() string
}

// base implements the shared bookkeeping (§4.4) common to Local and
// External: suite indices, the RunningSuite table, packet decode/route, and
// event fan-out. LocalTarget and ExternalTarget embed it and supply their
// own ExecuteSuites/Init/Free/Runners.
type base struct {
	cfg *config.Config
	q   *queue.Queue
	ids *idgen.Gen

	mu             sync.Mutex
	suiteByID      map[string]*Suite
	idByLogicalKey map[string]string
	running        map[string]*runningSuite // keyed by runnerID+suiteID
	listeners      map[Event][]Listener
}

func newBase(cfg *config.Config) base {
	return base{
		cfg:            cfg,
		q:              queue.New(cfg.Parallel()),
		ids:            idgen.New(time.Now().UnixNano()),
		suiteByID:      make(map[string]*Suite),
		idByLogicalKey: make(map[string]string),
		running:        make(map[string]*runningSuite),
		listeners:      make(map[Event][]Listener),
	}
}

// GenerateID returns a fresh 14-character token, retrying on the
// (astronomically unlikely) collision with an existing suite_id.
func (b *base) GenerateID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		id := b.ids.ID()
		if _, taken := b.suiteByID[id]; !taken {
			return id
		}
	}
}

// SetSuites clears the prior indices and assigns a fresh suite_id to each
// entry of files (logical_key -> relative path). An empty map is a fatal
// configuration error.
func (b *base) SetSuites(files map[string]string) error {
	if len(files) == 0 {
		return errors.NewKind(errors.KindUserConfig, "target: no suites to register")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.suiteByID = make(map[string]*Suite, len(files))
	b.idByLogicalKey = make(map[string]string, len(files))

	for logicalKey, path := range files {
		id := b.ids.ID()
		for {
			if _, taken := b.suiteByID[id]; !taken {
				break
			}
			id = b.ids.ID()
		}
		b.suiteByID[id] = &Suite{SuiteID: id, LogicalKey: logicalKey, Path: path, State: StateQueued}
		b.idByLogicalKey[logicalKey] = id
	}
	return nil
}

func (b *base) pathForSuite(suiteID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.suiteByID[suiteID]
	if !ok {
		return "", false
	}
	return s.Path, true
}

// setSuiteState transitions suiteID's lifecycle record. Unknown suite_ids
// are ignored: a completion racing a stale suite_id from a prior run is not
// an error.
func (b *base) setSuiteState(suiteID string, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.suiteByID[suiteID]; ok {
		s.State = state
	}
}

// On registers listener for event. Listeners are called synchronously on
// the goroutine that decoded the packet; they must not block.
func (b *base) On(event Event, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], listener)
}

func (b *base) emit(event Event, path string, pkt *protocol.Packet) {
	b.mu.Lock()
	ls := append([]Listener(nil), b.listeners[event]...)
	b.mu.Unlock()
	for _, l := range ls {
		l(path, pkt)
	}
}

// registerRunning installs a RunningSuite handle for runnerID+suiteID.
// Invariant: at most one entry per key at any time.
func (b *base) registerRunning(runnerID, suiteID string, resolve func(), reject func(error)) {
	key := runnerID + suiteID
	done := make(chan struct{})
	var once sync.Once
	rs := &runningSuite{
		suiteID: suiteID,
		done:    done,
		resolve: func() {
			once.Do(func() {
				resolve()
				close(done)
			})
		},
		reject: func(err error) {
			once.Do(func() {
				reject(err)
				close(done)
			})
		},
	}
	b.mu.Lock()
	b.running[key] = rs
	b.mu.Unlock()
}

// CompleteSuite implements §4.4's complete_suite: idempotent, looks up the
// handle for key (runnerID+suiteID), and resolves it, or rejects and
// enacts bail semantics if hadError and the run is configured to bail.
// Missing keys (duplicate completions) are silently ignored.
func (b *base) CompleteSuite(key string, hadError bool) {
	b.mu.Lock()
	rs, ok := b.running[key]
	if ok {
		delete(b.running, key) // delete-before-resolve prevents double resolution
	}
	bail := b.cfg.Bail()
	b.mu.Unlock()

	if !ok {
		return
	}

	if hadError && bail {
		b.setSuiteState(rs.suiteID, StateFailed)
		b.q.Stop()
		b.q.Clear()
		rs.reject(errors.NewKind(errors.KindSuiteFatal, "suite failed and bail is enabled"))
		return
	}
	if hadError {
		b.setSuiteState(rs.suiteID, StateFailed)
		rs.reject(errors.NewKind(errors.KindSuiteFatal, "suite failed"))
		return
	}
	b.setSuiteState(rs.suiteID, StateCompleted)
	rs.resolve()
}

// decodeAndRoute implements the dispatch pipeline's steps 2-4: decode the
// frame, resolve suite_id to path, and fan out to the matching event.
func (b *base) decodeAndRoute(ctx context.Context, frame []byte) {
	pkt, err := protocol.Decode(frame)
	if err != nil {
		logging.Errorf(ctx, "target: dropping unroutable packet: %v", err)
		return
	}

	path, ok := b.pathForSuite(pkt.SuiteID)
	if !ok {
		logging.Errorf(ctx, "target: packet for unknown suite_id %q", pkt.SuiteID)
		return
	}

	switch pkt.Kind {
	case protocol.KindLog:
		b.emit(EventLog, path, pkt)
	case protocol.KindError:
		b.CompleteSuite(pkt.RunnerID+pkt.SuiteID, true)
		b.emit(EventError, path, pkt)
	case protocol.KindStatus:
		if pkt.Status != nil && pkt.Status.Type == protocol.StatusEndSuite {
			defer b.CompleteSuite(pkt.RunnerID+pkt.SuiteID, false)
		}
		b.emit(EventStatus, path, pkt)
	case protocol.KindEvents:
		b.emit(EventEvents, path, pkt)
	default:
		logging.Errorf(ctx, "target: packet with unrecognized kind %v", pkt.Kind)
	}
}

// synthesizeError builds and routes a locally-synthesized Error packet,
// used when a runner fails, times out, or a local sandbox throws.
func (b *base) synthesizeError(ctx context.Context, suiteID, runnerID string, errJSON string) {
	hdr := protocol.Header{SuiteID: suiteID, RunnerID: runnerID, Timestamp: nowISO()}
	frame, err := protocol.Encode(protocol.KindError, hdr, &protocol.ErrorPayload{Error: errJSON})
	if err != nil {
		logging.Errorf(ctx, "target: failed to synthesize error packet: %v", err)
		return
	}
	b.decodeAndRoute(ctx, frame)
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
