// The main package for the canonical-checker executable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jobtrees/canonical-checker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
