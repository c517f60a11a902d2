// Package main is the entry point for ledgersync, which copies Canvas completions
// into the faculty_program ledger and emails staff a summary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ledgersync/cmd/ledgersync/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
