package reporter

import (
	"encoding/json"
	"os"

	"github.com/xjet/xjet/internal/logging"
)

func init() {
	Register("json", func(level logging.Level, outputFile string) (Reporter, error) {
		return NewJSON(outputFile), nil
	})
}

// JSON builds a runner/suite/describe/test tree in memory during the run
// and serializes it once, at Finish, to stdout and optionally outputFile.
type JSON struct {
	BaseReporter

	tree       *Tree
	outputFile string
}

// NewJSON returns a JSON reporter writing to outputFile in addition to
// stdout (outputFile may be empty).
func NewJSON(outputFile string) *JSON {
	return &JSON{tree: NewTree(), outputFile: outputFile}
}

func (j *JSON) DescribeStart(ev SuiteEvent) {
	j.tree.EnsureDescribe(ev.Runner, ev.Suite, append(ev.Ancestry, ev.Description))
}

func (j *JSON) TestEnd(ev SuiteEvent) {
	j.tree.RecordTest(ev.Runner, ev.Suite, ev.Ancestry, TestResult{
		Description: ev.Description,
		Passed:      ev.Passed,
		Skipped:     ev.Skipped,
		Todo:        ev.Todo,
		DurationMS:  ev.DurationMS,
		Errors:      ev.Errors,
	})
}

func (j *JSON) Finish() {
	data, err := json.MarshalIndent(j.tree.Snapshot(), "", "  ")
	if err != nil {
		return
	}
	data = append(data, '\n')
	os.Stdout.Write(data)
	if j.outputFile != "" {
		os.WriteFile(j.outputFile, data, 0o644)
	}
}

var _ Reporter = (*JSON)(nil)
