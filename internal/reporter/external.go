package reporter

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/xjet/xjet/errors"
)

// External runs a reporter as a separate process (Design Notes §9): rather
// than loading untrusted reporter code into this process, xJet spawns the
// path as an executable and streams newline-delimited JSON envelopes
// `{"hook": "...", "data": ...}` to its stdin, one per Reporter call. The
// child's stdout/stderr are inherited so it can render directly to the
// terminal or write its own output file.
type External struct {
	BaseReporter

	mu  sync.Mutex
	cmd *exec.Cmd
	in  io.WriteCloser
	enc *json.Encoder
}

type envelope struct {
	Hook string      `json:"hook"`
	Data interface{} `json:"data"`
}

// NewExternal launches path, optionally passing outputFile as its sole
// argument.
func NewExternal(path string, outputFile string) (Reporter, error) {
	args := []string{}
	if outputFile != "" {
		args = append(args, outputFile)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "reporter: failed to open stdin pipe for "+path)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "reporter: failed to start external reporter "+path)
	}
	return &External{cmd: cmd, in: stdin, enc: json.NewEncoder(stdin)}, nil
}

func (e *External) send(hook string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(envelope{Hook: hook, Data: data})
}

func (e *External) Init(paths []string, runners []string) {
	e.send("init", map[string]interface{}{"paths": paths, "runners": runners})
}
func (e *External) Log(msg LogMessage)         { e.send("log", msg) }
func (e *External) SuiteStart(ev SuiteEvent)    { e.send("suiteStart", ev) }
func (e *External) SuiteEnd(ev SuiteEvent)      { e.send("suiteEnd", ev) }
func (e *External) DescribeStart(ev SuiteEvent) { e.send("describeStart", ev) }
func (e *External) DescribeEnd(ev SuiteEvent)   { e.send("describeEnd", ev) }
func (e *External) TestStart(ev SuiteEvent)     { e.send("testStart", ev) }
func (e *External) TestEnd(ev SuiteEvent)       { e.send("testEnd", ev) }

func (e *External) Finish() {
	e.send("finish", nil)
	e.mu.Lock()
	_ = e.in.Close()
	e.mu.Unlock()
	_ = e.cmd.Wait()
}

var _ Reporter = (*External)(nil)
