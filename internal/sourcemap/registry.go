// Package sourcemap caches compiled->original position resolution keyed by
// normalized path, shared across the whole run by the stack formatter and
// the message router.
package sourcemap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xjet/xjet/errors"
)

// Position is a single resolved source position.
type Position struct {
	Source string
	Line   int
	Column int
	Name   string
}

// Map is a parsed source map, queryable by compiled (line, column).
type Map struct {
	version    int
	sources    []string
	sourceRoot string
	names      []string
	mappings   []segment // sorted by (genLine, genCol)
}

type segment struct {
	genLine, genCol   int
	sourceIdx         int // -1 if absent
	origLine, origCol int
	nameIdx           int // -1 if absent
}

// rawMap mirrors the JSON shape of a standard source map.
type rawMap struct {
	Version    int      `json:"version"`
	Sources    []string `json:"sources"`
	SourceRoot string   `json:"sourceRoot"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// Parse decodes a source map from its JSON text.
func Parse(text string) (*Map, error) {
	var raw rawMap
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.Wrap(err, "sourcemap: invalid JSON")
	}
	segs, err := decodeMappings(raw.Mappings)
	if err != nil {
		return nil, errors.Wrap(err, "sourcemap: invalid mappings")
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].genLine != segs[j].genLine {
			return segs[i].genLine < segs[j].genLine
		}
		return segs[i].genCol < segs[j].genCol
	})
	return &Map{
		version:    raw.Version,
		sources:    raw.Sources,
		sourceRoot: raw.SourceRoot,
		names:      raw.Names,
		mappings:   segs,
	}, nil
}

// Resolve finds the original position for a compiled (line, column),
// choosing the closest mapping at or before the requested position on the
// same line.
func (m *Map) Resolve(line, col int) (Position, bool) {
	best := -1
	for i, s := range m.mappings {
		if s.genLine != line {
			continue
		}
		if s.genCol <= col {
			best = i
		} else {
			break
		}
	}
	if best < 0 {
		return Position{}, false
	}
	s := m.mappings[best]
	pos := Position{Line: s.origLine + 1, Column: s.origCol}
	if s.sourceIdx >= 0 && s.sourceIdx < len(m.sources) {
		pos.Source = m.sources[s.sourceIdx]
	}
	if s.nameIdx >= 0 && s.nameIdx < len(m.names) {
		pos.Name = m.names[s.nameIdx]
	}
	return pos, true
}

// Registry caches one parsed Map per normalized path.
type Registry struct {
	mu    sync.Mutex
	cache map[string]*Map
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cache: make(map[string]*Map)}
}

// SetFromString parses text as a source map and inserts it under the
// normalized path. An empty mappings payload is silently ignored. Inserting
// a path that is already cached is a no-op: the existing Map is retained.
func (r *Registry) SetFromString(text, path string) error {
	key := normalize(path)

	r.mu.Lock()
	if _, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	var raw rawMap
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return errors.Wrap(err, "sourcemap: invalid JSON")
	}
	if strings.TrimSpace(raw.Mappings) == "" {
		return nil
	}

	m, err := Parse(text)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[key]; ok {
		return nil
	}
	r.cache[key] = m
	return nil
}

// SetFromFile reads path+".map" and inserts it under the normalized path.
func (r *Registry) SetFromFile(path string) error {
	data, err := os.ReadFile(path + ".map")
	if err != nil {
		return errors.Wrap(err, "sourcemap: reading map file")
	}
	return r.SetFromString(string(data), path)
}

// Lookup returns the Map registered for path, if any.
func (r *Registry) Lookup(path string) (*Map, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.cache[normalize(path)]
	return m, ok
}

func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// decodeMappings implements the VLQ "mappings" segment format used by
// standard source maps.
func decodeMappings(mappings string) ([]segment, error) {
	var segs []segment
	genLine := 0
	genCol, sourceIdx, origLine, origCol, nameIdx := 0, 0, 0, 0, 0

	for _, line := range strings.Split(mappings, ";") {
		genCol = 0
		if line != "" {
			for _, group := range strings.Split(line, ",") {
				if group == "" {
					continue
				}
				fields, err := decodeVLQGroup(group)
				if err != nil {
					return nil, err
				}
				seg := segment{sourceIdx: -1, nameIdx: -1}
				genCol += fields[0]
				seg.genLine = genLine
				seg.genCol = genCol
				if len(fields) >= 4 {
					sourceIdx += fields[1]
					origLine += fields[2]
					origCol += fields[3]
					seg.sourceIdx = sourceIdx
					seg.origLine = origLine
					seg.origCol = origCol
				}
				if len(fields) >= 5 {
					nameIdx += fields[4]
					seg.nameIdx = nameIdx
				}
				segs = append(segs, seg)
			}
		}
		genLine++
	}
	return segs, nil
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func decodeVLQGroup(s string) ([]int, error) {
	var fields []int
	shift, value := uint(0), 0
	for _, c := range s {
		digit := strings.IndexRune(base64Chars, c)
		if digit < 0 {
			return nil, errors.Errorf("sourcemap: invalid base64 VLQ character %q", c)
		}
		cont := digit&0x20 != 0
		digit &= 0x1f
		value += digit << shift
		if cont {
			shift += 5
			continue
		}
		negate := value&1 != 0
		value >>= 1
		if negate {
			value = -value
		}
		fields = append(fields, value)
		shift, value = 0, 0
	}
	return fields, nil
}
