package watch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// TSConfig holds the subset of tsconfig.json the dependency resolver
// needs: baseUrl and the paths alias map.
type TSConfig struct {
	BaseURL string
	Paths   map[string][]string
}

type rawTSConfig struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// LoadTSConfig reads rootDir/tsconfig.json. A missing file is not an error;
// it yields an empty TSConfig so resolution falls back to plain relative
// module resolution.
func LoadTSConfig(rootDir string) (*TSConfig, error) {
	data, err := os.ReadFile(filepath.Join(rootDir, "tsconfig.json"))
	if os.IsNotExist(err) {
		return &TSConfig{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw rawTSConfig
	if err := json.Unmarshal(stripJSONComments(data), &raw); err != nil {
		return nil, err
	}
	return &TSConfig{BaseURL: raw.CompilerOptions.BaseURL, Paths: raw.CompilerOptions.Paths}, nil
}

// stripJSONComments removes // line comments, tolerating the common
// tsconfig.json convention of JSON-with-comments. It does not attempt to
// handle comments embedded inside string literals containing "//".
func stripJSONComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

// Resolve maps an import specifier to an absolute file path, trying paths
// aliases first and falling back to relative resolution, per spec §4.8.
// The returned path always has an extension; ".ts" is appended when the
// specifier has none.
func (c *TSConfig) Resolve(rootDir, fromFile, specifier string) string {
	if resolved, ok := c.resolveAlias(rootDir, specifier); ok {
		return withExtension(resolved)
	}
	if strings.HasPrefix(specifier, ".") {
		dir := filepath.Dir(fromFile)
		return withExtension(filepath.Clean(filepath.Join(rootDir, dir, specifier)))
	}
	base := c.BaseURL
	if base == "" {
		base = "."
	}
	return withExtension(filepath.Clean(filepath.Join(rootDir, base, specifier)))
}

func (c *TSConfig) resolveAlias(rootDir, specifier string) (string, bool) {
	for pattern, targets := range c.Paths {
		prefix := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(specifier, prefix) {
			continue
		}
		if len(targets) == 0 {
			continue
		}
		suffix := strings.TrimPrefix(specifier, prefix)
		targetPattern := targets[0]
		resolved := strings.Replace(targetPattern, "*", suffix, 1)
		base := c.BaseURL
		if base == "" {
			base = "."
		}
		return filepath.Clean(filepath.Join(rootDir, base, resolved)), true
	}
	return "", false
}

func withExtension(path string) string {
	if filepath.Ext(path) != "" {
		return path
	}
	return path + ".ts"
}
