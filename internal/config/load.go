package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/xjet/xjet/errors"
)

// candidateNames are tried, in order, when no --config path is given.
var candidateNames = []string{"xjet.config.yaml", "xjet.config.yml", "xjet.config.json"}

// Resolve finds the config file to load: explicit takes priority, otherwise
// the first matching candidate under dir.
func Resolve(dir, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	for _, name := range candidateNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Load reads and validates the config file at path, merges it over the
// built-in defaults, and returns an immutable Config. An empty path yields
// the defaults alone.
func Load(path string) (*Config, error) {
	m := defaults()
	if path == "" {
		return &Config{m: m}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "reading config file")
	}

	doc, err := toJSON(path, raw)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "parsing config file")
	}

	if err := validate(doc); err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "config file failed schema validation")
	}

	var parsed mutable
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, errors.WrapKind(errors.KindUserConfig, err, "decoding config file")
	}
	mergeInto(m, &parsed)

	return &Config{m: m}, nil
}

// toJSON normalizes either a YAML or JSON config file to canonical JSON so a
// single schema and a single decode path can handle both.
func toJSON(path string, raw []byte) ([]byte, error) {
	if strings.HasSuffix(path, ".json") {
		return raw, nil
	}
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	generic = convertMapKeys(generic)
	return json.Marshal(generic)
}

// convertMapKeys recursively converts map[string]interface{} (the shape
// yaml.v3 decodes into for generic targets) so json.Marshal doesn't choke
// on non-string-keyed maps.
func convertMapKeys(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = convertMapKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = convertMapKeys(val)
		}
		return out
	default:
		return v
	}
}

func validate(doc []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(Schema)); err != nil {
		return err
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// mergeInto overlays non-zero fields of src onto dst. Slices and the build
// options are replaced wholesale when present in src, matching the
// distilled source's "shallow merge over defaults" config semantics.
func mergeInto(dst, src *mutable) {
	if src.Files != nil {
		dst.Files = src.Files
	}
	if src.Suites != nil {
		dst.Suites = src.Suites
	}
	if src.Filter != nil {
		dst.Filter = src.Filter
	}
	if src.Exclude != nil {
		dst.Exclude = src.Exclude
	}
	dst.Bail = src.Bail || dst.Bail
	dst.Watch = src.Watch || dst.Watch
	if src.Parallel != 0 {
		dst.Parallel = src.Parallel
	}
	if src.TimeoutMS != 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
	dst.Randomize = src.Randomize || dst.Randomize
	if src.LogLevelName != "" {
		dst.LogLevelName = src.LogLevelName
	}
	if src.Reporter != "" {
		dst.Reporter = src.Reporter
	}
	if src.OutputFile != "" {
		dst.OutputFile = src.OutputFile
	}
	if src.TestRunners != nil {
		dst.TestRunners = src.TestRunners
	}
	if src.Build.Target != "" {
		dst.Build = src.Build
	}
	dst.Verbose = src.Verbose || dst.Verbose
	if src.UserArgv != nil {
		dst.UserArgv = src.UserArgv
	}
}
