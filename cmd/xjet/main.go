// Command xjet is the orchestrator CLI: it discovers, bundles, and runs
// test suites against a Local or External target and exits with the code
// the run's outcome demands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/xjet/xjet/internal/logging"
	"github.com/xjet/xjet/internal/logging/zapsink"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// attachLogger builds a zap-backed logger at level and attaches it to ctx,
// bailing loudly (this runs before any reporter exists to report to) if
// the sink cannot be built.
func attachLogger(ctx context.Context, level logging.Level, verbose bool) context.Context {
	sink, err := zapsink.New(level, verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xjet: failed to initialize logger:", err)
		os.Exit(1)
	}
	return logging.AttachLogger(ctx, sink)
}
