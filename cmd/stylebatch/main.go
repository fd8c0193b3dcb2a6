// Package main implements the stylebatch command line: it fetches catalog
// records, downloads their images, generates styled variants and modeling
// guides, files the guides as issues and manages the run ledger schema.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
