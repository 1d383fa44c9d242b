package config

// Overrides holds the subset of configuration fields the CLI can set
// directly, layered on top of a loaded Config. Only fields the caller
// actually sets, via the Has* flags, are applied.
type Overrides struct {
	Files      []string
	Suites     []string
	Filter     []string
	Reporter   string
	OutputFile string
	Verbose    bool
	Silent     bool
	TimeoutMS  int
	Bail       bool
	Watch      bool
	Randomize  bool

	// UserArgv carries CLI-parsed values for flags declared in the config
	// file's userArgv schema (Design Notes §9(c)); each key present here
	// overrides that key's config-file default before runners are dialed.
	UserArgv map[string]interface{}

	HasFiles     bool
	HasSuites    bool
	HasFilter    bool
	HasReporter  bool
	HasOutputFile bool
	HasTimeoutMS bool
}

// WithOverrides returns a new Config with ov layered on top of c, matching
// §6's CLI flag precedence over the loaded config file.
func WithOverrides(c *Config, ov Overrides) *Config {
	m := *c.m
	if ov.HasFiles {
		m.Files = ov.Files
	}
	if ov.HasSuites {
		m.Suites = ov.Suites
	}
	if ov.HasFilter {
		m.Filter = ov.Filter
	}
	if ov.HasReporter {
		m.Reporter = ov.Reporter
	}
	if ov.HasOutputFile {
		m.OutputFile = ov.OutputFile
	}
	if ov.Verbose {
		m.Verbose = true
	}
	if ov.Silent {
		m.LogLevelName = "silent"
	}
	if ov.HasTimeoutMS {
		m.TimeoutMS = ov.TimeoutMS
	}
	if ov.Bail {
		m.Bail = true
	}
	if ov.Watch {
		m.Watch = true
	}
	if ov.Randomize {
		m.Randomize = true
	}
	if len(ov.UserArgv) > 0 {
		merged := make(map[string]interface{}, len(m.UserArgv)+len(ov.UserArgv))
		for k, v := range m.UserArgv {
			merged[k] = v
		}
		for k, v := range ov.UserArgv {
			merged[k] = v
		}
		m.UserArgv = merged
	}
	return &Config{m: &m}
}
