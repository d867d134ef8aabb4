package commands

import (
	"github.com/spf13/cobra"

	"github.com/joel-cunningham/cdk-example/cmd/cdk-example/handlers"
)

// Synth returns the command that writes the stack template.
//
// Optional flags:
//
//	--config, -c: Path to stack configuration YAML file (default: auto-detect stack.yaml)
//	--output, -o: Output directory (default: cdk.out)
//	--format: json or yaml
//	--lookup: resolve account, zones and machine image from AWS
func Synth() *cobra.Command {
	var opts handlers.SynthOptions

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the stack template",
		Long: `Synthesize the deployment template of the stack.

The configuration is validated, every component is declared in dependency
order and the result is checked before anything is written. Running synth
twice on the same configuration produces the same template.

Examples:
  # Synthesize stack.yaml from the current directory
  cdk-example synth

  # Write YAML to a custom directory
  cdk-example synth -c production.yaml -o build --format yaml

  # Pin account, AZs and machine image from the target account
  cdk-example synth --lookup`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Synth(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")
	cmd.Flags().StringVarP(&opts.OutDir, "output", "o", handlers.DefaultOutDir, "Output directory")
	cmd.Flags().StringVar(&opts.Format, "format", handlers.FormatJSON, "Template format: json or yaml")
	cmd.Flags().BoolVar(&opts.Lookup, "lookup", false, "Resolve account, availability zones and machine image from AWS")

	return cmd
}

// Validate returns the command that checks a configuration without writing
// a template.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the stack configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")

	return cmd
}

// Diff returns the command that compares a fresh synthesis with a saved
// template.
func Diff() *cobra.Command {
	var configPath, against string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the synthesized template with a deployed one",
		Long: `Compare a fresh synthesis with a saved template.

Exits non-zero when the templates differ.

Example:
  cdk-example diff --against cdk.out/web.template.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Diff(cmd.Context(), cmd.OutOrStdout(), configPath, against)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")
	cmd.Flags().StringVar(&against, "against", "", "Path to the deployed template (JSON or YAML)")
	_ = cmd.MarkFlagRequired("against")

	return cmd
}

// DestroyPlan returns the command that prints the teardown order.
func DestroyPlan() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "destroy-plan",
		Short: "Show the teardown order of the stack",
		Long: `Show the order in which stack resources are deleted.

Dependents are removed before what they depend on. Resources with a retain
policy, such as the artifact bucket under removal_policy: retain, are listed
but kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DestroyPlan(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")

	return cmd
}
