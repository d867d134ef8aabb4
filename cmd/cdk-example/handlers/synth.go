package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Template output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultOutDir is where synth writes templates.
const DefaultOutDir = "cdk.out"

// Lookup resolves deploy-time values from the target account.
type Lookup interface {
	AccountID(ctx context.Context) (string, error)
	AvailabilityZones(ctx context.Context) ([]string, error)
	ResolveImage(ctx context.Context, parameter string) (string, error)
}

// newLookup creates the client behind --lookup.
var newLookup = func(ctx context.Context, region string) (Lookup, error) {
	client, err := newAWSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// mkdirAll creates the output directory (for testing injection).
var mkdirAll = os.MkdirAll

// SynthOptions configures Synth.
type SynthOptions struct {
	ConfigPath string
	OutDir     string
	Format     string
	// Lookup pins the account, the availability zones and the machine image
	// from the target account instead of leaving them to deploy time.
	Lookup bool
}

// Synth synthesizes the stack and writes its template to the output
// directory.
//
// The function:
//  1. Loads and validates the stack configuration
//  2. Optionally resolves account, zones and image from the target account
//  3. Builds the resource graph, failing on the first violated constraint
//  4. Writes <stack>.template.json or .yaml
//  5. Prints the outputs and a per-type resource summary
func Synth(ctx context.Context, out io.Writer, opts SynthOptions) error {
	data, ext, err := renderFormat(opts.Format)
	if err != nil {
		return err
	}

	cfg, baseDir, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.Lookup {
		if err := lookup(ctx, cfg); err != nil {
			return err
		}
	}

	g, err := synthesize(ctx, cfg, baseDir)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	rendered, err := data(g.Template())
	if err != nil {
		return err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = DefaultOutDir
	}
	if err := mkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outDir, cfg.StackName+".template."+ext)
	if err := writeFile(path, rendered, 0o600); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}

	p := newPrinter(out)
	p.line(p.title.Render(fmt.Sprintf("Synthesized %s (%d resources)", cfg.StackName, g.Len())))
	p.row("Template", path)
	printOutputs(p, g)
	printResourceSummary(p, g)
	return nil
}

func renderFormat(format string) (func(*topology.Template) ([]byte, error), string, error) {
	switch format {
	case "", FormatJSON:
		return (*topology.Template).JSON, FormatJSON, nil
	case FormatYAML:
		return (*topology.Template).YAML, FormatYAML, nil
	}
	return nil, "", fmt.Errorf("unsupported format %q (use json or yaml)", format)
}

// lookup pins values the template would otherwise resolve at deploy time.
func lookup(ctx context.Context, cfg *config.Config) error {
	log := logr.FromContextOrDiscard(ctx)
	client, err := newLookup(ctx, cfg.Region)
	if err != nil {
		return err
	}

	if cfg.Account == "" {
		account, err := client.AccountID(ctx)
		if err != nil {
			return err
		}
		cfg.Account = account
		log.Info("Resolved account", "account", account)
	}

	if len(cfg.Network.AvailabilityZones) == 0 {
		zones, err := client.AvailabilityZones(ctx)
		if err != nil {
			return err
		}
		if len(zones) > cfg.Network.MaxAZs {
			zones = zones[:cfg.Network.MaxAZs]
		}
		cfg.Network.AvailabilityZones = zones
		log.Info("Resolved availability zones", "zones", zones)
	}

	if img := cfg.Fleet.MachineImage; img.ID == "" && img.SSMParameter != "" {
		id, err := client.ResolveImage(ctx, img.SSMParameter)
		if err != nil {
			return err
		}
		cfg.Fleet.MachineImage.ID = id
		log.Info("Resolved machine image", "parameter", img.SSMParameter, "image", id)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid after lookup: %w", err)
	}
	return nil
}

func printOutputs(p *printer, g *topology.Graph) {
	names := g.OutputNames()
	if len(names) == 0 {
		return
	}
	p.heading("Outputs")
	for _, name := range names {
		o, _ := g.Output(name)
		value, err := json.Marshal(o.Value)
		if err != nil {
			value = []byte(fmt.Sprint(o.Value))
		}
		p.row(name, string(value))
	}
}

func printResourceSummary(p *printer, g *topology.Graph) {
	counts := g.CountByType()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	p.heading("Resources")
	for _, t := range types {
		p.printf("  %-42s %d\n", t, counts[t])
	}
}

// Validate loads the configuration and builds the graph without writing
// anything.
func Validate(ctx context.Context, out io.Writer, configPath string) error {
	cfg, baseDir, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	g, err := synthesize(ctx, cfg, baseDir)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p := newPrinter(out)
	p.printf("%s %s is valid: %d resources, %d outputs\n",
		p.mark(true), cfg.StackName, g.Len(), len(g.OutputNames()))
	return nil
}
