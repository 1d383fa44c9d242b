package reporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestExternalStreamsEnvelopesToChildStdin spawns a tiny shell script that
// copies its stdin to a file, then checks the recorded newline-delimited
// JSON envelopes carry the expected hook names in order.
func TestExternalStreamsEnvelopesToChildStdin(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "capture.ndjson")
	script := filepath.Join(dir, "reporter.sh")
	body := "#!/bin/sh\ncat > " + capture + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r, err := NewExternal(script, "")
	if err != nil {
		t.Fatalf("NewExternal() error = %v", err)
	}

	r.Init([]string{"a.test.ts"}, []string{"local"})
	r.SuiteStart(SuiteEvent{Suite: "math", Runner: "local"})
	r.TestEnd(SuiteEvent{Suite: "math", Runner: "local", Description: "adds", Passed: true})
	r.Finish()

	deadline := time.Now().Add(2 * time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		data, err = os.ReadFile(capture)
		if err == nil && len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", capture, err)
	}

	want := []string{`"hook":"init"`, `"hook":"suiteStart"`, `"hook":"testEnd"`, `"hook":"finish"`}
	got := string(data)
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("captured stdin = %q, missing envelope %q", got, w)
		}
	}
}
