package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joel-cunningham/cdk-example/internal/audit"
)

// ErrAuditFailed is returned when at least one check failed.
var ErrAuditFailed = errors.New("audit found violations")

// newAuditReader creates the reader behind the audit (for testing injection).
var newAuditReader = func(ctx context.Context, region string) (audit.Reader, error) {
	client, err := newAWSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// AuditOptions configures Audit.
type AuditOptions struct {
	ConfigPath  string
	Bucket      string
	VPCID       string
	ProviderARN string
}

// Audit checks the live resources of a deployed stack against its
// configuration.
func Audit(ctx context.Context, out io.Writer, opts AuditOptions) error {
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	reader, err := newAuditReader(ctx, cfg.Region)
	if err != nil {
		return err
	}

	report, err := audit.New(cfg, reader).Run(ctx, audit.Target{
		BucketName:      opts.Bucket,
		VPCID:           opts.VPCID,
		OIDCProviderARN: opts.ProviderARN,
	})
	if err != nil {
		return err
	}

	p := newPrinter(out)
	p.line(p.title.Render(fmt.Sprintf("Audit of %s", report.Stack)))
	for _, f := range report.Findings {
		marker := p.mark(f.Status == audit.StatusPass)
		if f.Status == audit.StatusSkip {
			marker = p.warn.Render("-")
		}
		p.printf("  %s %-22s %s\n", marker, f.Check, f.Resource)
		p.printf("      %s\n", p.dim.Render(f.Detail))
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d checks failed", ErrAuditFailed, len(failed), len(report.Findings))
	}
	return nil
}
