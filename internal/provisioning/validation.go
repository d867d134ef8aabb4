package provisioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/config"
)

// ValidationError represents a configuration validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// ValidationPhase implements the Phase interface for pre-flight validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface. Hard constraints come from
// config.Validate and stop synthesis at the first violation; the checks here
// only warn about settings that synthesize but are likely mistakes.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	ctx.Observer.Printf("[Validation] Running pre-flight validation...")

	if err := ctx.Config.Validate(); err != nil {
		LogValidationError(ctx.Observer, err)
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	for _, warning := range Warnings(ctx.Config) {
		LogValidationWarning(ctx.Observer, warning.Field, warning.Message)
	}

	ctx.Observer.Printf("[Validation] Validation passed")
	return nil
}

// Warnings returns the soft findings for a valid configuration.
func Warnings(cfg *config.Config) []ValidationError {
	var warnings []ValidationError
	warn := func(field, format string, args ...any) {
		warnings = append(warnings, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: "warning",
		})
	}

	// --- Network ---

	azs := len(cfg.AvailabilityZones())
	if cfg.Network.HasTierType(config.SubnetPrivateEgress) {
		if nats := cfg.Network.NATGatewayCount(azs); nats < azs {
			warn("network.nat_gateways", "%d NAT gateways serve %d availability zones; losing one cuts egress for several zones", nats, azs)
		}
	}

	// --- Router ---

	if cfg.Router.DeregistrationDelay == 0 {
		warn("router.deregistration_delay", "in-flight requests are cut as soon as a target is deregistered")
	}

	hc := cfg.Router.HealthCheck
	timeToHealthy := time.Duration(hc.HealthyThreshold-1) * hc.Interval
	if grace := cfg.Fleet.HealthCheckGracePeriod; grace > 0 && grace < timeToHealthy {
		warn("fleet.health_check_grace_period", "grace period %v is shorter than the %v a new instance needs to pass %d health checks", grace, timeToHealthy, hc.HealthyThreshold)
	}

	// --- Fleet ---

	if cfg.Fleet.UserData == "" && cfg.Fleet.UserDataFile == "" {
		warn("fleet.user_data", "no bootstrap payload; the machine image must already run the deployment agent")
	}

	// --- Pipeline ---

	size := cfg.Fleet.Desired()
	switch floor := cfg.Pipeline.MinimumHealthyHosts.Resolve(size); {
	case floor == 0:
		warn("pipeline.minimum_healthy_hosts", "a floor of 0 hosts lets a deployment take the whole fleet out of service")
	case floor == size:
		warn("pipeline.minimum_healthy_hosts", "a floor of %d hosts on a fleet of %d halts every deployment before the first host", floor, size)
	}

	// --- Trust ---

	if strings.HasSuffix(cfg.Trust.SubjectPattern, ":*") {
		warn("trust.subject_pattern", "%q lets any branch, tag, pull request or environment of the repository deploy", cfg.Trust.SubjectPattern)
	}

	// --- Artifact store ---

	if cfg.ArtifactStore.RemovalPolicy == config.RemovalDestroy && cfg.ArtifactStore.Versioned {
		warn("artifact_store.removal_policy", "deleting the stack deletes every stored release version")
	}

	return warnings
}
