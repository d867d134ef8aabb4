package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/joel-cunningham/cdk-example/internal/metrics"
	"github.com/joel-cunningham/cdk-example/internal/rollout"
	"github.com/joel-cunningham/cdk-example/internal/simulation"
)

// runSimulation runs the behavioural models (for testing injection).
var runSimulation = simulation.Run

// SimulateOptions configures Simulate.
type SimulateOptions struct {
	ConfigPath  string
	Revision    string
	BrokenHosts []string
	FailInstall []string
	// FailBootstrap hosts are replaced before the rollout.
	FailBootstrap []string
	// Metrics dumps the metrics registry after the report.
	Metrics bool
}

// Simulate launches the fleet behind the load balancer on a fake clock,
// rolls a revision onto it and prints what happened.
func Simulate(ctx context.Context, out io.Writer, opts SimulateOptions) error {
	cfg, baseDir, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	payload, err := cfg.UserData(baseDir)
	if err != nil {
		return err
	}

	simOpts := simulation.Options{
		BrokenHosts:   opts.BrokenHosts,
		FailInstall:   opts.FailInstall,
		FailBootstrap: opts.FailBootstrap,
		BaseDir:       baseDir,
	}
	if opts.Revision != "" {
		simOpts.Revision = rollout.Revision{Bucket: cfg.ArtifactStore.BucketName, Key: opts.Revision}
	}

	report, runErr := runSimulation(ctx, cfg, payload, simOpts)
	if report != nil {
		printSimulation(newPrinter(out), report)
	}
	if opts.Metrics {
		p := newPrinter(out)
		p.heading("Metrics")
		if err := metrics.WriteText(out); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	return nil
}

func printSimulation(p *printer, r *simulation.Report) {
	p.line(p.title.Render(fmt.Sprintf("Simulation of %s", r.Stack)))
	p.row("Target group", r.TargetGroup)
	p.row("Fleet healthy after", r.TimeToHealthy)
	if len(r.Replaced) > 0 {
		p.row("Replaced", strings.Join(r.Replaced, ", "))
	}

	p.heading("Members")
	for _, m := range r.Members {
		p.printf("  %-24s %-16s %s\n", m.ID, m.Address, m.State)
	}

	p.heading("Targets")
	for _, t := range r.Targets {
		p.printf("  %-24s %-16s %s\n", t.ID, t.Address, t.State)
	}

	if len(r.Access) > 0 {
		p.heading("CI access")
		for _, c := range r.Access {
			line := fmt.Sprintf("  %s %s", p.mark(c.OK()), c.Name)
			if !c.Allowed {
				line += " " + p.dim.Render("refused")
			}
			p.line(line)
		}
	}

	d := r.Deployment
	if d == nil {
		return
	}
	p.heading("Deployment")
	p.row("ID", d.ID)
	p.row("Revision", fmt.Sprintf("s3://%s/%s", d.Revision.Bucket, d.Revision.Key))
	p.row("Status", d.Status)
	p.row("Minimum healthy hosts", d.MinHealthy)
	if d.Paused > 0 {
		p.row("Paused for", d.Paused)
	}
	for _, h := range d.Hosts {
		ok := h.Result == rollout.HostSucceeded
		line := fmt.Sprintf("  %s %-24s %s", p.mark(ok), h.HostID, h.Result)
		if h.Error != "" {
			line += " " + p.dim.Render(h.Error)
		}
		p.line(line)
	}
}
