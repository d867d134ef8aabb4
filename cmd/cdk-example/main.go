// Package main is the entry point for the cdk-example CLI.
//
// cdk-example synthesizes the deployment template of a single-region
// application stack: tiered network, load balanced fleet, release pipeline,
// CI trust and encrypted artifact bucket. It can also simulate a rollout,
// audit deployed resources and push releases.
//
// Commands: init, synth, validate, diff, destroy-plan, simulate, audit, release.
//
// For detailed usage information, run:
//
//	cdk-example --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joel-cunningham/cdk-example/cmd/cdk-example/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
