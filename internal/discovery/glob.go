package discovery

import (
	"regexp"
	"strings"
)

// CompileGlob converts a glob pattern (or a plain literal, or an already
// compiled /regex/ passed through unchanged) into an anchored regexp per
// spec §4.6:
//
//	?      -> .
//	**     -> .*/?   (spans path segments)
//	*      -> [^/]+
//	[...]  -> [...]  (character class, passed through)
//	{a,b}  -> (a|b)
//
// any other regex metacharacter in the literal remainder is escaped.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	if isRegexLiteral(pattern) {
		return regexp.Compile(pattern[1 : len(pattern)-1])
	}

	var out strings.Builder
	out.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '?':
			out.WriteString(".")
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				out.WriteString(".*/?")
				i++
				// swallow an immediately following path separator so
				// "**/x" doesn't produce a doubled slash.
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				out.WriteString("[^/]+")
			}
		case '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				out.WriteString(string(runes[i : j+1]))
				i = j
			} else {
				out.WriteString(regexp.QuoteMeta(string(r)))
			}
		case '{':
			j := i + 1
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j < len(runes) {
				alts := strings.Split(string(runes[i+1:j]), ",")
				out.WriteString("(")
				out.WriteString(strings.Join(alts, "|"))
				out.WriteString(")")
				i = j
			} else {
				out.WriteString(regexp.QuoteMeta(string(r)))
			}
		default:
			out.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	out.WriteByte('$')

	return regexp.Compile(out.String())
}

// isRegexLiteral reports whether pattern is already a /.../  regex literal,
// passed through unchanged per spec §4.6.
func isRegexLiteral(pattern string) bool {
	return len(pattern) >= 2 && pattern[0] == '/' && pattern[len(pattern)-1] == '/'
}

// CompileAll compiles every pattern in patterns, stopping at the first
// error.
func CompileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := CompileGlob(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// MatchAny reports whether s matches any of res.
func MatchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
