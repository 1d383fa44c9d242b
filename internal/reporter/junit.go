package reporter

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/xjet/xjet/internal/logging"
)

func init() {
	Register("junit", func(level logging.Level, outputFile string) (Reporter, error) {
		return NewJUnit(outputFile), nil
	})
}

// JUnit converts the shared result Tree into a <testsuites><testsuite>
// <testcase/></testsuite></testsuites> document at Finish, grounded on the
// teacher's junit_xml.go shape.
type JUnit struct {
	BaseReporter

	tree       *Tree
	outputFile string
}

// NewJUnit returns a JUnit reporter writing to outputFile in addition to
// stdout (outputFile may be empty).
func NewJUnit(outputFile string) *JUnit {
	return &JUnit{tree: NewTree(), outputFile: outputFile}
}

func (j *JUnit) DescribeStart(ev SuiteEvent) {
	j.tree.EnsureDescribe(ev.Runner, ev.Suite, append(ev.Ancestry, ev.Description))
}

func (j *JUnit) TestEnd(ev SuiteEvent) {
	j.tree.RecordTest(ev.Runner, ev.Suite, ev.Ancestry, TestResult{
		Description: ev.Description,
		Passed:      ev.Passed,
		Skipped:     ev.Skipped,
		Todo:        ev.Todo,
		DurationMS:  ev.DurationMS,
		Errors:      ev.Errors,
	})
}

type xmlTestSuites struct {
	XMLName    xml.Name     `xml:"testsuites"`
	TestSuites []xmlTestSuite `xml:"testsuite"`
}

type xmlTestSuite struct {
	Name     string        `xml:"name,attr"`
	Tests    int           `xml:"tests,attr"`
	Failures int           `xml:"failures,attr"`
	Skipped  int           `xml:"skipped,attr"`
	Time     string        `xml:"time,attr"`
	TestCase []xmlTestCase `xml:"testcase"`
}

type xmlTestCase struct {
	Name    string       `xml:"name,attr"`
	Time    string       `xml:"time,attr"`
	Failure []xmlFailure `xml:"failure,omitempty"`
	Skipped *xmlSkipped  `xml:"skipped,omitempty"`
}

type xmlFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Details string `xml:",cdata"`
}

type xmlSkipped struct{}

func flatten(runner string, d *Describe, ancestry []string, out *xmlTestSuite) {
	name := strings.Join(append(ancestry, d.Description), " > ")
	for _, tc := range d.Tests {
		out.Tests++
		xc := xmlTestCase{
			Name: strings.TrimPrefix(name+" > "+tc.Description, " > "),
			Time: fmt.Sprintf("%.3f", float64(tc.DurationMS)/1000),
		}
		if tc.Skipped || tc.Todo {
			out.Skipped++
			xc.Skipped = &xmlSkipped{}
		} else if !tc.Passed {
			out.Failures++
			for _, e := range tc.Errors {
				xc.Failure = append(xc.Failure, xmlFailure{
					Message: e.Message,
					Details: e.Formatted,
				})
			}
		}
		out.TestCase = append(out.TestCase, xc)
	}
	for _, child := range d.Describes {
		flatten(runner, child, append(ancestry, d.Description), out)
	}
}

func (j *JUnit) Finish() {
	doc := xmlTestSuites{}
	for runner, suites := range j.tree.Snapshot() {
		for suiteName, root := range suites {
			suite := xmlTestSuite{Name: suiteName}
			flatten(runner, root, nil, &suite)
			doc.TestSuites = append(doc.TestSuites, suite)
		}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	os.Stdout.Write(data)
	if j.outputFile != "" {
		os.WriteFile(j.outputFile, data, 0o644)
	}
}

var _ Reporter = (*JUnit)(nil)
