package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/destroy"
)

// DestroyPlan prints the order in which the stack's resources are torn
// down and which ones are retained.
func DestroyPlan(ctx context.Context, out io.Writer, configPath string) error {
	cfg, baseDir, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	g, err := synthesize(ctx, cfg, baseDir)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	pCtx, err := provisioning.NewContext(ctx, cfg, "")
	if err != nil {
		return err
	}
	plan, err := destroy.NewProvisioner().Plan(pCtx, g)
	if err != nil {
		return err
	}

	p := newPrinter(out)
	p.line(p.title.Render(fmt.Sprintf("Teardown of %s", plan.Stack)))
	for i, s := range plan.Steps {
		action := p.bad.Render(string(s.Action))
		if s.Action == destroy.ActionRetain {
			action = p.warn.Render(string(s.Action))
		}
		p.printf("  %3d. %-7s %-36s %s\n", i+1, action, s.LogicalID, p.dim.Render(s.Type))
	}
	if retained := plan.Retained(); len(retained) > 0 {
		p.line("")
		p.printf("%d resources are retained and must be removed by hand.\n", len(retained))
	}
	return nil
}
