package wizard

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Result holds all the answers from the interactive wizard.
type Result struct {
	StackName    string
	Region       string
	CIDR         string
	InstanceType string
	MinCapacity  string
	MaxCapacity  string
	Repository   string // owner/name of the CI repository
	Branch       string
	Encryption   string
	KMSKeyAlias  string
}

// Regions offered by the wizard. Any region can be set in the file later.
var Regions = []string{
	"us-east-1", "us-east-2", "us-west-2", "eu-west-1", "eu-central-1", "ap-southeast-2",
}

// InstanceTypes offered by the wizard.
var InstanceTypes = []string{"t3.micro", "t3.small", "t3.medium", "m6i.large"}

var (
	stackNameRegex  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)
	repositoryRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// RunWizard runs the interactive configuration wizard.
// The context is used for cancellation support (e.g., Ctrl+C).
func RunWizard(ctx context.Context) (*Result, error) {
	result := &Result{
		Region:       Regions[0],
		CIDR:         "10.0.0.0/16",
		InstanceType: InstanceTypes[0],
		MinCapacity:  "2",
		MaxCapacity:  "4",
		Branch:       "main",
		Encryption:   "s3-managed",
	}

	if err := runStackGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("stack: %w", err)
	}
	if err := runFleetGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("fleet: %w", err)
	}
	if err := runTrustGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("trust: %w", err)
	}
	if err := runStoreGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	return result, nil
}

func runStackGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stack Name").
				Placeholder("web").
				Value(&result.StackName).
				Validate(validateStackName),
			huh.NewSelect[string]().
				Title("Region").
				Options(huh.NewOptions(Regions...)...).
				Value(&result.Region),
			huh.NewInput().
				Title("Network CIDR").
				Description("Address block split into public, application and data tiers").
				Value(&result.CIDR).
				Validate(validateCIDR),
		).Title("Stack"),
	).RunWithContext(ctx)
}

func runFleetGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Instance Type").
				Options(huh.NewOptions(InstanceTypes...)...).
				Value(&result.InstanceType),
			huh.NewInput().
				Title("Minimum Capacity").
				Description("At least 2 so rollouts can keep a host in service").
				Value(&result.MinCapacity).
				Validate(validateCapacity),
			huh.NewInput().
				Title("Maximum Capacity").
				Value(&result.MaxCapacity).
				Validate(validateCapacity),
		).Title("Fleet"),
	).RunWithContext(ctx)
}

func runTrustGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("CI Repository").
				Description("Only workflows of this repository may assume the deploy role").
				Placeholder("owner/name").
				Value(&result.Repository).
				Validate(validateRepository),
			huh.NewInput().
				Title("Branch").
				Value(&result.Branch),
		).Title("CI Trust"),
	).RunWithContext(ctx)
}

func runStoreGroup(ctx context.Context, result *Result) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Artifact Encryption").
				Options(
					huh.NewOption("S3 managed keys", "s3-managed"),
					huh.NewOption("KMS key", "kms"),
				).
				Value(&result.Encryption),
		).Title("Artifact Store"),
	).RunWithContext(ctx)
	if err != nil || result.Encryption != "kms" {
		return err
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("KMS Key Alias").
				Placeholder("alias/releases").
				Value(&result.KMSKeyAlias),
		),
	).RunWithContext(ctx)
}

func validateStackName(s string) error {
	if s == "" {
		return errStackNameRequired
	}
	if !stackNameRegex.MatchString(s) {
		return errStackNameInvalid
	}
	return nil
}

func validateCIDR(s string) error {
	if s == "" {
		return errCIDRRequired
	}
	ip, block, err := net.ParseCIDR(s)
	if err != nil || ip.To4() == nil {
		return errCIDRInvalid
	}
	if size, _ := block.Mask.Size(); size < 16 || size > 28 {
		return errCIDRInvalid
	}
	return nil
}

func validateRepository(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errRepositoryRequired
	}
	if !repositoryRegex.MatchString(s) {
		return errRepositoryInvalid
	}
	return nil
}

func validateCapacity(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errCapacityInvalid
	}
	return nil
}
