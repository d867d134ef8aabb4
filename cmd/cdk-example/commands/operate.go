package commands

import (
	"github.com/spf13/cobra"

	"github.com/joel-cunningham/cdk-example/cmd/cdk-example/handlers"
)

// Simulate returns the command that rolls a revision out on an in-memory
// copy of the stack.
func Simulate() *cobra.Command {
	var opts handlers.SimulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Roll a revision out on a simulated fleet",
		Long: `Bring up a simulated copy of the fleet, router and deployment group, then
deploy a revision one host at a time.

Broken hosts fail their health checks; hosts listed under --fail-install fail
the install step. Both affect whether the rollout keeps its minimum healthy
hosts. Hosts listed under --fail-bootstrap never come into service and are
replaced before the rollout starts.

Examples:
  cdk-example simulate --revision v2
  cdk-example simulate --broken i-0002 --fail-install i-0003`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Simulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")
	cmd.Flags().StringVar(&opts.Revision, "revision", "v1", "Revision version to deploy")
	cmd.Flags().StringSliceVar(&opts.BrokenHosts, "broken", nil, "Hosts that fail health checks")
	cmd.Flags().StringSliceVar(&opts.FailInstall, "fail-install", nil, "Hosts whose install step fails")
	cmd.Flags().StringSliceVar(&opts.FailBootstrap, "fail-bootstrap", nil, "Hosts whose bootstrap payload fails")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "Print collected metrics after the run")

	return cmd
}

// Audit returns the command that checks live resources against the
// configuration.
func Audit() *cobra.Command {
	var opts handlers.AuditOptions

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check deployed resources against the configuration",
		Long: `Read the deployed artifact bucket, key, identity provider and VPC
endpoints and compare them with the configuration.

Exits non-zero when any check fails. Checks whose resource cannot be located
are reported as skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Audit(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "Artifact bucket name (default: from configuration)")
	cmd.Flags().StringVar(&opts.VPCID, "vpc-id", "", "VPC whose endpoints are checked")
	cmd.Flags().StringVar(&opts.ProviderARN, "provider-arn", "", "ARN of the CI identity provider")

	return cmd
}

// Release returns the command that uploads a bundle and starts a deployment.
func Release() *cobra.Command {
	var opts handlers.ReleaseOptions

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Upload a revision bundle and deploy it",
		Long: `Upload a revision bundle to the artifact bucket with the configured
encryption, register it with the deployment application and start a
deployment to the fleet.

Example:
  cdk-example release --bundle app.zip --revision v2 --wait`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Release(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stack.yaml)")
	cmd.Flags().StringVar(&opts.Bundle, "bundle", "", "Path to the revision bundle (zip)")
	cmd.Flags().StringVar(&opts.Revision, "revision", "", "Revision version, used in the object key")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "Artifact bucket name (default: from configuration)")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "Wait for the deployment to finish")
	_ = cmd.MarkFlagRequired("bundle")
	_ = cmd.MarkFlagRequired("revision")

	return cmd
}

// Init returns the command that writes a configuration interactively.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a stack configuration interactively",
		Long: `Walk through the stack settings and write a configuration file.

Example:
  cdk-example init -o production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), cmd.OutOrStdout(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "stack.yaml", "Output file path")

	return cmd
}
