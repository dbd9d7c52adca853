// Command triddefspack installs triddefspack on first use and runs it with the given arguments.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tridirt/tridirt/internal/interfaces/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.ExecuteDispatcher(ctx, "triddefspack", cli.DefaultStreams(), os.Args[1:])
	cancel()
	os.Exit(code)
}
