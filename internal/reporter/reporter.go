// Package reporter defines the normalized message shapes the message
// router emits and the Reporter contract that consumes them (spec §4.9).
// Reporters never see raw wire packets; by the time a message reaches a
// Reporter, source maps have been resolved and stack traces formatted.
package reporter

// LogMessage is the normalized form of a Log packet.
type LogMessage struct {
	Level      string
	LevelID    uint8
	Suite      string
	Runner     string
	Message    string
	Ancestry   []string
	Timestamp  string
	Invocation *Invocation
}

// Invocation is the resolved source position of a log call, if known.
type Invocation struct {
	Line   uint32
	Column uint32
	Source string
}

// SuiteEvent carries the fields common to suite/describe/test lifecycle
// messages.
type SuiteEvent struct {
	Suite       string
	Runner      string
	Ancestry    []string
	Description string
	DurationMS  uint32
	Todo        bool
	Skipped     bool
	Passed      bool
	Errors      []WireError
	Timestamp   string
}

// WireError is a decoded error as it travels from the wire to a reporter.
type WireError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`

	// Formatted is populated by the router's stack formatter pass.
	Formatted string `json:"-"`
}

// Reporter receives the orchestrator's lifecycle hooks. Every method is
// optional; embed BaseReporter to default all of them to no-ops.
type Reporter interface {
	Init(paths []string, runners []string)
	Log(msg LogMessage)
	SuiteStart(ev SuiteEvent)
	SuiteEnd(ev SuiteEvent)
	DescribeStart(ev SuiteEvent)
	DescribeEnd(ev SuiteEvent)
	TestStart(ev SuiteEvent)
	TestEnd(ev SuiteEvent)
	Finish()
}

// BaseReporter implements Reporter with no-op defaults. Concrete reporters
// embed it and override only the hooks they care about.
type BaseReporter struct{}

func (BaseReporter) Init(paths []string, runners []string) {}
func (BaseReporter) Log(msg LogMessage)                    {}
func (BaseReporter) SuiteStart(ev SuiteEvent)               {}
func (BaseReporter) SuiteEnd(ev SuiteEvent)                 {}
func (BaseReporter) DescribeStart(ev SuiteEvent)            {}
func (BaseReporter) DescribeEnd(ev SuiteEvent)              {}
func (BaseReporter) TestStart(ev SuiteEvent)                {}
func (BaseReporter) TestEnd(ev SuiteEvent)                  {}
func (BaseReporter) Finish()                                {}

var _ Reporter = BaseReporter{}
