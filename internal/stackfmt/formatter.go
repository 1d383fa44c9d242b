// Package stackfmt turns a captured error trace into a structured,
// source-mapped stack for reporters, filtering out native and framework
// frames unless explicitly requested.
package stackfmt

import (
	"strconv"
	"strings"

	"github.com/xjet/xjet/internal/sourcemap"
)

// Frame is one raw stack frame as reported by a runner, prior to source
// map resolution.
type Frame struct {
	File     string
	Function string
	Line     int
	Column   int
	Native   bool
	Source   string // original reporting source, used for framework detection
}

func (f Frame) empty() bool {
	return f.File == "" && f.Function == "" && f.Line == 0 && f.Column == 0
}

// ResolvedFrame is a Frame after source-map resolution and path
// normalization.
type ResolvedFrame struct {
	File     string
	Function string
	Line     int
	Column   int
}

// Result is the structured trace produced by Format.
type Result struct {
	Code         string
	FormattedCode string
	Line         int
	Column       int
	Source       string
	Stacks       []ResolvedFrame
}

// Options controls frame filtering and snippet generation.
type Options struct {
	WithNativeFrames    bool
	WithFrameworkFrames bool
	DistDir             string // distribution directory for source_root rewriting
	SourceRoot          string
	LinesBefore         int
	LinesAfter          int
	// Snippet resolves the full text of a resolved source file, for
	// building the highlighted code window. It may return ("", false) if
	// the source is unavailable (e.g. fetched over HTTP and not cached).
	Snippet func(path string, line int) (code string, ok bool)
}

// Format builds a Result from raw frames, resolving each through reg when
// possible and falling back to framework frames re-enabled if filtering
// would otherwise produce an empty stack.
func Format(frames []Frame, reg *sourcemap.Registry, opts Options) Result {
	res := buildStacks(frames, reg, opts)
	if len(res.Stacks) == 0 && len(frames) > 0 && !opts.WithFrameworkFrames {
		fallback := opts
		fallback.WithFrameworkFrames = true
		res = buildStacks(frames, reg, fallback)
	}
	return res
}

func buildStacks(frames []Frame, reg *sourcemap.Registry, opts Options) Result {
	var res Result
	capturedSnippet := false

	for _, f := range frames {
		if f.empty() {
			continue
		}
		if f.Native && !opts.WithNativeFrames {
			continue
		}
		if isFrameworkFrame(f) && !opts.WithFrameworkFrames {
			continue
		}

		rf := ResolvedFrame{File: f.File, Function: f.Function, Line: f.Line, Column: f.Column}
		if reg != nil {
			if m, ok := reg.Lookup(f.File); ok {
				if pos, ok := m.Resolve(f.Line, f.Column); ok {
					rf.File = pos.Source
					rf.Line = pos.Line
					rf.Column = pos.Column
				}
			}
		}
		rf.File = normalizePath(rf.File, rf.Line, opts)

		if !capturedSnippet {
			res.Line = rf.Line
			res.Column = rf.Column
			res.Source = rf.File
			if opts.Snippet != nil {
				if code, ok := opts.Snippet(rf.File, rf.Line); ok {
					res.Code = code
					res.FormattedCode = highlight(code)
				}
			}
			capturedSnippet = true
		}

		res.Stacks = append(res.Stacks, rf)
	}
	return res
}

// isFrameworkFrame reports whether a frame belongs to the xjet framework
// itself rather than user code, per §4.3: a source containing "xjet" but
// not "xjet.config", or a source whose root contains "xJet".
func isFrameworkFrame(f Frame) bool {
	src := f.Source
	if src == "" {
		src = f.File
	}
	lower := strings.ToLower(src)
	if strings.Contains(lower, "xjet") && !strings.Contains(lower, "xjet.config") {
		return true
	}
	if strings.Contains(src, "xJet") {
		return true
	}
	return false
}

func normalizePath(source string, line int, opts Options) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return source + lineSuffix(line)
	}
	if strings.HasPrefix(source, "file://") {
		return source
	}
	if opts.SourceRoot != "" && strings.HasPrefix(source, opts.SourceRoot) {
		rel := strings.TrimPrefix(source, opts.SourceRoot)
		rel = strings.TrimPrefix(rel, "/")
		if opts.DistDir != "" {
			return opts.DistDir + "/" + rel
		}
		return rel
	}
	return source
}

func lineSuffix(line int) string {
	if line <= 0 {
		return ""
	}
	return "#L" + strconv.Itoa(line)
}

// highlight applies a minimal syntax-highlight pass. The real renderer
// lives in the terminal reporter; here we only normalize whitespace so the
// snippet is stable across platforms.
func highlight(code string) string {
	return strings.ReplaceAll(code, "\t", "    ")
}
