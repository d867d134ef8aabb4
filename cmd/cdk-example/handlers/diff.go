package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// ErrChangesDetected is returned by Diff when the templates differ, so the
// command exits non-zero.
var ErrChangesDetected = errors.New("synthesized template differs from the deployed one")

// Diff synthesizes the stack and compares it with a saved template.
func Diff(ctx context.Context, out io.Writer, configPath, againstPath string) error {
	data, err := readFile(againstPath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	deployed, err := topology.ParseTemplate(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", againstPath, err)
	}

	cfg, baseDir, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	g, err := synthesize(ctx, cfg, baseDir)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	changes, err := topology.Diff(deployed, g.Template())
	if err != nil {
		return err
	}

	p := newPrinter(out)
	if len(changes) == 0 {
		p.printf("%s %s: no changes\n", p.mark(true), cfg.StackName)
		return nil
	}

	p.line(p.title.Render(fmt.Sprintf("%s: %d changes", cfg.StackName, len(changes))))
	for _, c := range changes {
		marker := p.warn.Render("~")
		switch c.Action {
		case topology.ChangeAdd:
			marker = p.good.Render("+")
		case topology.ChangeRemove:
			marker = p.bad.Render("-")
		}
		p.printf("  %s %s %s\n", marker, c.LogicalID, p.dim.Render(c.Type))
		if c.Detail != "" {
			p.printf("      %s\n", c.Detail)
		}
	}
	return ErrChangesDetected
}
