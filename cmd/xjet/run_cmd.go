package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/spf13/pflag"

	"github.com/xjet/xjet/internal/config"
	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/orchestrator"
)

// runCmd implements subcommands.Command (and is also xjet's implicit
// default action): discover, bundle, and run suites per §6.
type runCmd struct {
	files      string
	suites     string
	filter     string
	configPath string
	reporter   string
	outputFile string
	verbose    bool
	silent     bool
	timeoutMS  int
	bail       bool
	watch      bool
	randomize  bool
}

var _ subcommands.Command = (*runCmd)(nil)

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "discover and run test suites" }
func (*runCmd) Usage() string {
	return `Usage: xjet run [flags] [files...]

Discovers test suites under the current directory, bundles and dispatches
them against the configured target, and exits 2 on a suite-level failure,
1 if any test failed, 0 otherwise.

`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.files, "files", "", "comma-separated include glob patterns")
	f.StringVar(&r.suites, "suites", "", "comma-separated suite-name glob patterns")
	f.StringVar(&r.suites, "s", "", "alias for -suites")
	f.StringVar(&r.filter, "filter", "", "comma-separated test-name filters")
	f.StringVar(&r.filter, "f", "", "alias for -filter")
	f.StringVar(&r.configPath, "config", "", "path to xjet.config.{yaml,yml,json}")
	f.StringVar(&r.configPath, "c", "", "alias for -config")
	f.StringVar(&r.reporter, "reporter", "", "built-in reporter name or path to an external reporter")
	f.StringVar(&r.reporter, "r", "", "alias for -reporter")
	f.StringVar(&r.outputFile, "outputFile", "", "file JSON/JUnit reporters additionally write to")
	f.BoolVar(&r.verbose, "verbose", false, "show framework frames in stack traces and enable debug logs")
	f.BoolVar(&r.verbose, "v", false, "alias for -verbose")
	f.BoolVar(&r.silent, "silent", false, "suppress all logging")
	f.IntVar(&r.timeoutMS, "timeout", 0, "per-suite dispatch timeout in milliseconds")
	f.IntVar(&r.timeoutMS, "t", 0, "alias for -timeout")
	f.BoolVar(&r.bail, "bail", false, "stop after the first suite-level failure")
	f.BoolVar(&r.bail, "b", false, "alias for -bail")
	f.BoolVar(&r.watch, "watch", false, "keep running and re-run affected suites on file change")
	f.BoolVar(&r.watch, "w", false, "alias for -watch")
	f.BoolVar(&r.randomize, "randomize", false, "shuffle suite dispatch order")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rootDir := "."

	path, _ := config.Resolve(rootDir, r.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("xjet: failed to load config:", err)
		return subcommands.ExitUsageError
	}

	positional := f.Args()
	userArgv, err := parseUserArgv(cfg.UserArgv(), positional)
	if err != nil {
		fmt.Println("xjet:", err)
		return subcommands.ExitUsageError
	}

	ov := config.Overrides{
		Verbose: r.verbose, Silent: r.silent, Bail: r.bail, Watch: r.watch, Randomize: r.randomize,
		UserArgv: userArgv,
	}
	var filePatterns []string
	for _, a := range positional {
		if !strings.HasPrefix(a, "-") {
			filePatterns = append(filePatterns, a)
		}
	}
	if r.files != "" || len(filePatterns) > 0 {
		ov.HasFiles = true
		ov.Files = append(splitCSV(r.files), filePatterns...)
	}
	if r.suites != "" {
		ov.HasSuites, ov.Suites = true, splitCSV(r.suites)
	}
	if r.filter != "" {
		ov.HasFilter, ov.Filter = true, splitCSV(r.filter)
	}
	if r.reporter != "" {
		ov.HasReporter, ov.Reporter = true, r.reporter
	}
	if r.outputFile != "" {
		ov.HasOutputFile, ov.OutputFile = true, r.outputFile
	}
	if r.timeoutMS != 0 {
		ov.HasTimeoutMS, ov.TimeoutMS = true, r.timeoutMS
	}
	cfg = config.WithOverrides(cfg, ov)

	ctx = attachLogger(ctx, cfg.LogLevel(), cfg.Verbose())

	code, err := orchestrator.Run(ctx, orchestrator.Options{Config: cfg, RootDir: rootDir})
	if err != nil {
		logging.Errorf(ctx, "xjet: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitStatus(code)
}

// parseUserArgv parses positional flag-like tokens against the schema
// declared by the config's userArgv map (per Design Notes §9(c): unknown
// flags are rejected outright, only flags named in userArgv are accepted
// beyond the fixed xJet flag set). Tokens that don't look like flags (no
// leading "-") are left for the caller to treat as file patterns.
func parseUserArgv(schema map[string]interface{}, args []string) (map[string]interface{}, error) {
	fs := pflag.NewFlagSet("xjet-user", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = false
	values := make(map[string]*string, len(schema))
	for name, def := range schema {
		values[name] = fs.String(name, fmt.Sprint(def), "user-defined option")
	}

	var flagArgs []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flagArgs = append(flagArgs, a)
		}
	}
	if len(flagArgs) == 0 {
		return nil, nil
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, fmt.Errorf("unrecognized option: %w", err)
	}

	out := make(map[string]interface{}, len(values))
	for name, v := range values {
		if n, convErr := strconv.ParseFloat(*v, 64); convErr == nil {
			out[name] = n
			continue
		}
		out[name] = *v
	}
	return out, nil
}
