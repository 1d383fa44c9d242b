// Command xjet-runner is the reference external Runner SPI implementation
// (spec §4.10): it listens on a TCP address, accepts xjet orchestrator
// connections, and executes dispatched bundles the same way
// the Local Target's in-process sandbox does, demonstrating the SPI
// end-to-end without a real sandboxed JavaScript VM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/xjet/xjet/internal/orchestrator"
	"github.com/xjet/xjet/internal/runnersvc"
)

type referenceExecutor struct{}

func (referenceExecutor) Execute(ctx context.Context, bundle []byte, suiteID, runnerID string, emit func(frame []byte)) error {
	orchestrator.RunReference(ctx, bundle, suiteID, runnerID, emit)
	return nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4700", "address to listen on")
	flag.Parse()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xjet-runner: listen:", err)
		os.Exit(1)
	}
	fmt.Println("xjet-runner: listening on", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := runnersvc.NewServer(referenceExecutor{})
	if err := srv.Serve(ctx, ln); err != nil {
		fmt.Fprintln(os.Stderr, "xjet-runner: serve:", err)
		os.Exit(1)
	}
}
