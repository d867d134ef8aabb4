package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/config/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard runs the interactive wizard.
	runWizard = wizard.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = wizard.WriteConfig
)

// Init runs the configuration wizard and writes the result to a file.
func Init(ctx context.Context, out io.Writer, outputPath string) error {
	p := newPrinter(out)
	if fileExists(outputPath) {
		p.printf("%s %s already exists and will be overwritten.\n\n", p.warn.Render("Warning:"), outputPath)
	}

	printWelcome(p)

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := wizard.BuildConfig(result)
	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(p, outputPath, cfg)
	return nil
}

func printWelcome(p *printer) {
	p.line(p.title.Render("cdk-example - single-region application stack"))
	p.line("")
	p.line("This wizard creates a stack configuration with sensible defaults.")
	p.line("Every default is written out so the file can be edited later.")
	p.line("")
}

func printInitSuccess(p *printer, outputPath string, cfg *config.Config) {
	p.line("")
	p.line(p.good.Render("Configuration saved!"))
	p.row("File", outputPath)

	p.heading("Stack Summary")
	p.row("Name", cfg.StackName)
	p.row("Region", cfg.Region)
	p.row("Network", cfg.Network.CIDR)
	p.row("Fleet", fmt.Sprintf("%d-%d x %s", cfg.Fleet.MinCapacity, cfg.Fleet.MaxCapacity, cfg.Fleet.InstanceType))
	p.row("CI subject", cfg.Trust.SubjectPattern)
	p.row("Artifact encryption", cfg.ArtifactStore.Encryption)

	p.heading("Next Steps")
	p.line("  1. Review the file and adjust tiers or endpoints")
	p.printf("  2. Run: cdk-example synth -c %s\n", outputPath)
	p.line("  3. Deploy the template from cdk.out")
}
