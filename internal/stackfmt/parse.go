package stackfmt

import "regexp"

// v8Frame matches the conventional V8 stack trace line:
//
//	    at functionName (file:line:column)
//	    at file:line:column
var v8Frame = regexp.MustCompile(`^\s*at\s+(?:(.+?)\s+\()?([^()]+):(\d+):(\d+)\)?$`)

// ParseV8Stack splits a raw `\n`-joined stack trace into Frames. Lines that
// don't match the conventional shape are skipped; native frames ("node:"
// or "internal/" prefixed files) are flagged.
func ParseV8Stack(stack string) []Frame {
	var frames []Frame
	for _, line := range splitLines(stack) {
		m := v8Frame.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fn, file, lineNo, col := m[1], m[2], m[3], m[4]
		frames = append(frames, Frame{
			File:     file,
			Function: fn,
			Line:     atoiSafe(lineNo),
			Column:   atoiSafe(col),
			Native:   isNativeFile(file),
			Source:   file,
		})
	}
	return frames
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func isNativeFile(file string) bool {
	return len(file) >= 5 && file[:5] == "node:" || len(file) >= 9 && file[:9] == "internal/"
}
