package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/config"
	awsplatform "github.com/joel-cunningham/cdk-example/internal/platform/aws"
	"github.com/joel-cunningham/cdk-example/internal/util/async"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Reader reads live resources. *aws.Client implements it.
type Reader interface {
	AccountID(ctx context.Context) (string, error)
	BucketSecurity(ctx context.Context, bucket string) (*awsplatform.BucketSecurity, error)
	KeyForAlias(ctx context.Context, alias string) (*awsplatform.Key, error)
	OIDCProvider(ctx context.Context, arn string) (*awsplatform.OIDCProvider, error)
	VPCEndpoints(ctx context.Context, vpcID string) ([]awsplatform.Endpoint, error)
}

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Finding is the outcome of one check against one resource.
type Finding struct {
	Check    string
	Resource string
	Status   Status
	Detail   string
}

// Report holds every finding of an audit, sorted by check then resource.
type Report struct {
	Stack    string
	Findings []Finding
}

// Failed returns the failed findings.
func (r *Report) Failed() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Status == StatusFail {
			out = append(out, f)
		}
	}
	return out
}

// Passed reports whether no check failed.
func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Target names the physical resources to audit. Empty fields are derived
// from the config where possible and skipped otherwise.
type Target struct {
	Account         string
	BucketName      string
	VPCID           string
	OIDCProviderARN string
}

// Auditor runs the checks for one stack.
type Auditor struct {
	cfg    *config.Config
	reader Reader

	mu       sync.Mutex
	findings []Finding
}

// New creates an auditor. cfg must already have defaults applied.
func New(cfg *config.Config, reader Reader) *Auditor {
	return &Auditor{cfg: cfg, reader: reader}
}

// Run executes every check. An error means a resource could not be read;
// failed checks are reported in the Report, not as an error.
func (a *Auditor) Run(ctx context.Context, target Target) (*Report, error) {
	a.findings = nil
	if target.BucketName == "" {
		target.BucketName = a.cfg.ArtifactStore.BucketName
	}

	if target.OIDCProviderARN == "" {
		if target.Account == "" {
			target.Account = a.cfg.Account
		}
		if target.Account == "" {
			account, err := a.reader.AccountID(ctx)
			if err != nil {
				return nil, err
			}
			target.Account = account
		}
		scope := naming.NewScope(a.cfg.Region, target.Account)
		target.OIDCProviderARN = scope.OIDCProviderARN(a.cfg.Trust.ProviderURL)
	}

	tasks := []async.Task{
		{Name: "bucket", Func: func(ctx context.Context) error { return a.checkBucket(ctx, target.BucketName) }},
		{Name: "identity provider", Func: func(ctx context.Context) error { return a.checkProvider(ctx, target.OIDCProviderARN) }},
		{Name: "endpoints", Func: func(ctx context.Context) error { return a.checkEndpoints(ctx, target.VPCID) }},
	}
	if a.cfg.ArtifactStore.Encryption == config.EncryptionKMS {
		tasks = append(tasks, async.Task{Name: "bucket key", Func: a.checkKey})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return nil, fmt.Errorf("audit of %s incomplete: %w", a.cfg.StackName, err)
	}

	report := &Report{Stack: a.cfg.StackName, Findings: a.findings}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		fi, fj := report.Findings[i], report.Findings[j]
		if fi.Check != fj.Check {
			return fi.Check < fj.Check
		}
		return fi.Resource < fj.Resource
	})

	log := logr.FromContextOrDiscard(ctx)
	log.Info("Audit finished", "stack", report.Stack, "findings", len(report.Findings), "failed", len(report.Failed()))
	return report, nil
}

func (a *Auditor) record(check, resource string, ok bool, detail string, args ...any) {
	status := StatusPass
	if !ok {
		status = StatusFail
	}
	a.add(Finding{Check: check, Resource: resource, Status: status, Detail: fmt.Sprintf(detail, args...)})
}

func (a *Auditor) skip(check, detail string) {
	a.add(Finding{Check: check, Status: StatusSkip, Detail: detail})
}

func (a *Auditor) add(f Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = append(a.findings, f)
}

// sameSet compares two string lists ignoring order and case.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	norm := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		sort.Strings(out)
		return out
	}
	na, nb := norm(a), norm(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func wantEncryption(cfg *config.Config) artifacts.Encryption {
	return artifacts.EncryptionFromConfig(cfg.ArtifactStore.Encryption)
}
