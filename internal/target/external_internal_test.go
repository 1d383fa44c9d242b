package target

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xjet/xjet/internal/xjet"
)

func TestPrependContextEmbedsRealDirnameAndFilename(t *testing.T) {
	rc := xjet.RuntimeContext{SuiteID: "abc", Path: "sub/dir/a.test.ts"}
	out := string(prependContext(rc, []byte("// bundle"), rc.Path))

	wantDirname, _ := json.Marshal("sub/dir")
	wantFilename, _ := json.Marshal("sub/dir/a.test.ts")

	if !strings.Contains(out, "__dirname="+string(wantDirname)) {
		t.Errorf("prependContext output = %q, want __dirname=%s", out, wantDirname)
	}
	if !strings.Contains(out, "__filename="+string(wantFilename)) {
		t.Errorf("prependContext output = %q, want __filename=%s", out, wantFilename)
	}
	if !strings.HasSuffix(out, "// bundle") {
		t.Errorf("prependContext output = %q, want the bundle preserved at the tail", out)
	}
}

func TestPrependContextEmbedsRuntimeContextPath(t *testing.T) {
	rc := xjet.RuntimeContext{SuiteID: "abc", Path: "a.test.ts"}
	out := string(prependContext(rc, []byte("x"), rc.Path))

	var decoded struct {
		Path string `json:"Path"`
	}
	start := strings.Index(out, "globalThis.__XJET = ") + len("globalThis.__XJET = ")
	end := strings.Index(out, "; x")
	if start < 0 || end < 0 || end <= start {
		t.Fatalf("could not locate embedded __XJET JSON in %q", out)
	}
	if err := json.Unmarshal([]byte(out[start:end]), &decoded); err != nil {
		t.Fatalf("embedded __XJET JSON did not parse: %v", err)
	}
	if decoded.Path != "a.test.ts" {
		t.Errorf("decoded.Path = %q, want a.test.ts", decoded.Path)
	}
}
