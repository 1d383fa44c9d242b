// Package discovery implements Spec Discovery (§4.6): a recursive
// filesystem walk over the configured root that maps logical suite keys
// (relative path without extension) to their on-disk relative path,
// filtered by the exclude/suites/files glob-or-regex pattern sets.
package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/xjet/xjet/errors"
)

// Patterns holds the three configured pattern sets, already compiled.
type Patterns struct {
	Files   []*regexp.Regexp
	Suites  []*regexp.Regexp
	Exclude []*regexp.Regexp

	// rawFiles/rawSuites retain the original glob text so matchGlob can
	// additionally consult doublestar's glob semantics as a convenience
	// cross-check alongside the hand-rolled regex compiler.
	rawFiles  []string
	rawSuites []string
}

// Compile builds a Patterns from the configuration's raw pattern strings.
func Compile(files, suites, exclude []string) (*Patterns, error) {
	filesRe, err := CompileAll(files)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "discovery: invalid files pattern")
	}
	suitesRe, err := CompileAll(suites)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "discovery: invalid suites pattern")
	}
	excludeRe, err := CompileAll(exclude)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "discovery: invalid exclude pattern")
	}
	return &Patterns{
		Files: filesRe, Suites: suitesRe, Exclude: excludeRe,
		rawFiles: files, rawSuites: suites,
	}, nil
}

// matchGlob reports whether rel matches pattern raw, consulting doublestar's
// glob matcher as well as the compiled regex: rel matches if the regex
// accepts it or, for a plain glob pattern (no regex literal, no brace
// groups), if doublestar accepts it, which covers compiler divergence on
// edge cases like "**" at the start of a pattern.
func matchGlob(raw string, re *regexp.Regexp, rel string) bool {
	if re.MatchString(rel) {
		return true
	}
	if isRegexLiteral(raw) || strings.ContainsAny(raw, "{}") {
		return false
	}
	ok, _ := doublestar.Match(raw, rel)
	return ok
}

func (p *Patterns) matchesFiles(rel string) bool {
	for i, re := range p.Files {
		if matchGlob(p.rawFiles[i], re, rel) {
			return true
		}
	}
	return false
}

func (p *Patterns) matchesSuites(rel string) bool {
	if len(p.Suites) == 0 {
		return true
	}
	for i, re := range p.Suites {
		if matchGlob(p.rawSuites[i], re, rel) {
			return true
		}
	}
	return false
}

func (p *Patterns) matchesExclude(rel string) bool {
	return MatchAny(p.Exclude, rel)
}

// MatchesFiles reports whether rel matches the configured files patterns.
func (p *Patterns) MatchesFiles(rel string) bool { return p.matchesFiles(rel) }

// MatchesSuites reports whether rel matches the configured suites patterns.
func (p *Patterns) MatchesSuites(rel string) bool { return p.matchesSuites(rel) }

// MatchesExclude reports whether rel matches the configured exclude patterns.
func (p *Patterns) MatchesExclude(rel string) bool { return p.matchesExclude(rel) }

// Discover walks rootPath and returns the logical-key -> relative-path map
// per spec §4.6's five-step per-entry algorithm.
func Discover(rootPath string, patterns *Patterns) (map[string]string, error) {
	out := make(map[string]string)

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}

		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if patterns.matchesExclude(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !patterns.matchesSuites(rel) {
			return nil
		}
		if !patterns.matchesFiles(rel) {
			return nil
		}

		key := strings.TrimSuffix(rel, filepath.Ext(rel))
		out[key] = rel
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discovery: walk failed")
	}
	return out, nil
}
