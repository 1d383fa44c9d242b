package reporter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/hako/durafmt"
	"github.com/rivo/tview"

	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/stats"
)

func init() {
	Register("spec", func(level logging.Level, outputFile string) (Reporter, error) {
		return NewConsole(), nil
	})
}

const consoleUpdateInterval = 230 * time.Millisecond

// Console renders a live terminal UI, grounded on boone's tview status-list
// pattern: a scrolling suite-detail region above a fixed aggregate status
// block ("Suites: ... Tests: ... Time: ...").
type Console struct {
	BaseReporter

	mu          sync.Mutex
	counters    *stats.Counters
	runnerWidth int
	suitesDone  int
	lines       []string
	start       time.Time

	app    *tview.Application
	detail *tview.TextView
	status *tview.TextView
	root   *tview.Flex

	stopTicker chan struct{}
}

// NewConsole returns a Console reporter. The live UI is started lazily on
// the first Init call so headless invocations (e.g. tests) never touch the
// terminal.
func NewConsole() *Console {
	return &Console{counters: stats.New(), start: time.Now()}
}

func (c *Console) Init(paths []string, runners []string) {
	c.mu.Lock()
	for _, r := range runners {
		if len(r) > c.runnerWidth {
			c.runnerWidth = len(r)
		}
	}
	c.mu.Unlock()

	c.detail = tview.NewTextView()
	c.detail.SetDynamicColors(true)
	c.detail.SetScrollable(true)

	c.status = tview.NewTextView()
	c.status.SetDynamicColors(true)

	c.root = tview.NewFlex().SetDirection(tview.FlexRow)
	c.root.AddItem(c.detail, 0, 1, false)
	c.root.AddItem(c.status, 1, 0, false)

	c.app = tview.NewApplication().SetRoot(c.root, true)
	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			c.app.Stop()
			return nil
		}
		return event
	})

	c.stopTicker = make(chan struct{})
	go c.runTicker()
	go c.app.Run()
}

func (c *Console) runTicker() {
	ticker := time.NewTicker(consoleUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopTicker:
			return
		case <-ticker.C:
			c.render()
		}
	}
}

func runnerToken(runner string, width int) string {
	if runner == "" {
		return ""
	}
	return fmt.Sprintf("[%-*s] ", width, runner)
}

func statusToken(passed bool) string {
	if passed {
		return "[green]PASS[white]"
	}
	return "[red]FAIL[white]"
}

func (c *Console) SuiteStart(ev SuiteEvent) {
	c.appendLine(fmt.Sprintf("%s[darkgray]%s starting", runnerToken(ev.Runner, c.runnerWidth), ev.Suite))
}

func (c *Console) SuiteEnd(ev SuiteEvent) {
	c.mu.Lock()
	c.suitesDone++
	c.mu.Unlock()
	elapsed := durafmt.Parse(time.Duration(ev.DurationMS) * time.Millisecond).LimitFirstN(2).String()
	c.appendLine(fmt.Sprintf("%s%s %s (%s)",
		runnerToken(ev.Runner, c.runnerWidth), statusToken(len(ev.Errors) == 0), ev.Suite, elapsed))
}

func (c *Console) TestEnd(ev SuiteEvent) {
	outcome := stats.OutcomePassed
	switch {
	case ev.Todo:
		outcome = stats.OutcomeTodo
	case ev.Skipped:
		outcome = stats.OutcomeSkipped
	case !ev.Passed:
		outcome = stats.OutcomeFailed
	}
	c.counters.RecordTest(ev.Suite, outcome)

	name := strings.Join(append(append([]string{}, ev.Ancestry...), ev.Description), " > ")
	c.appendLine(fmt.Sprintf("  %s%s %s", runnerToken(ev.Runner, c.runnerWidth), statusToken(ev.Passed), name))
}

func (c *Console) appendLine(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	if len(c.lines) > 2000 {
		c.lines = c.lines[len(c.lines)-2000:]
	}
	c.mu.Unlock()
}

func (c *Console) render() {
	if c.app == nil {
		return
	}
	c.mu.Lock()
	lines := append([]string(nil), c.lines...)
	g := c.counters.Global()
	suites := c.suitesDone
	elapsed := durafmt.Parse(time.Since(c.start).Round(time.Second)).LimitFirstN(2).String()
	c.mu.Unlock()

	status := fmt.Sprintf("Suites: %d  Tests: %d passed, %d failed, %d skipped  Time: %s",
		suites, g.Passed, g.Failed, g.Skipped, elapsed)

	c.app.QueueUpdateDraw(func() {
		c.detail.SetText(strings.Join(lines, "\n"))
		c.detail.ScrollToEnd()
		c.status.SetText(status)
	})
}

// Finish stops the ticker and the tview event loop.
func (c *Console) Finish() {
	c.render()
	if c.stopTicker != nil {
		close(c.stopTicker)
	}
	if c.app != nil {
		c.app.Stop()
	}
}

var _ Reporter = (*Console)(nil)
