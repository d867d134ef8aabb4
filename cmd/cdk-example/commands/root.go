// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/joel-cunningham/cdk-example/cmd/cdk-example/handlers"
)

// Root returns the root command for the cdk-example CLI.
//
// The root command installs the logger every subcommand reads from its
// context and organizes the command hierarchy.
func Root() *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:           "cdk-example",
		Short:         "Synthesize a single-region application stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log := handlers.NewLogger(cmd.ErrOrStderr(), verbosity)
			cmd.SetContext(logr.NewContext(cmd.Context(), log))
		},
	}
	cmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log verbosity (0-2)")

	// Synthesis
	cmd.AddCommand(Init())
	cmd.AddCommand(Synth())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Diff())
	cmd.AddCommand(DestroyPlan())

	// Operations
	cmd.AddCommand(Simulate())
	cmd.AddCommand(Audit())
	cmd.AddCommand(Release())

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
