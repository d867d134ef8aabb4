package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationError names the first configuration field that violates a
// constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var (
	stackNameRegex  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)
	bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	thumbprintRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)
	roleNameRegex   = regexp.MustCompile(`^[\w+=,.@-]{1,64}$`)
	// repo:<owner>/<name>: with no wildcard before the ref part.
	subjectRegex = regexp.MustCompile(`^repo:[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+:.+$`)
)

// Validate checks the configuration and returns the first violation.
func (c *Config) Validate() error {
	if !stackNameRegex.MatchString(c.StackName) {
		return invalid("stack_name", "must start with a letter and contain only letters, digits and hyphens (got %q)", c.StackName)
	}
	if c.Region == "" {
		return invalid("region", "is required")
	}

	validators := []func() error{
		c.validateNetwork,
		c.validateEndpoints,
		c.validateFleet,
		c.validateRouter,
		c.validatePipeline,
		c.validateTrust,
		c.validateArtifactStore,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateNetwork() error {
	n := &c.Network
	ip, block, err := net.ParseCIDR(n.CIDR)
	if err != nil || ip.To4() == nil {
		return invalid("network.cidr", "must be an IPv4 CIDR block (got %q)", n.CIDR)
	}
	if !ip.Equal(block.IP) {
		return invalid("network.cidr", "%s is not a network address, did you mean %s", n.CIDR, block)
	}
	if size, _ := block.Mask.Size(); size < MinSubnetMask || size > MaxSubnetMask {
		return invalid("network.cidr", "prefix length must be between /%d and /%d", MinSubnetMask, MaxSubnetMask)
	}
	if n.MaxAZs < 1 {
		return invalid("network.max_azs", "must be at least 1")
	}
	if len(n.Tiers) == 0 {
		return invalid("network.tiers", "at least one tier is required")
	}

	seen := make(map[string]bool)
	for i, tier := range n.Tiers {
		field := fmt.Sprintf("network.tiers[%d]", i)
		if tier.Name == "" {
			return invalid(field+".name", "is required")
		}
		if seen[tier.Name] {
			return invalid(field+".name", "duplicate tier %q", tier.Name)
		}
		seen[tier.Name] = true
		switch tier.Type {
		case SubnetPublic, SubnetPrivateEgress, SubnetPrivateIsolated:
		default:
			return invalid(field+".type", "must be public, private-egress or private-isolated (got %q)", tier.Type)
		}
		if tier.CIDRMask != 0 && (tier.CIDRMask < MinSubnetMask || tier.CIDRMask > MaxSubnetMask) {
			return invalid(field+".cidr_mask", "must be between %d and %d", MinSubnetMask, MaxSubnetMask)
		}
	}

	azCount := len(c.AvailabilityZones())
	nats := n.NATGatewayCount(azCount)
	if nats < 0 {
		return invalid("network.nat_gateways", "must not be negative")
	}
	if nats > azCount {
		return invalid("network.nat_gateways", "%d gateways exceed the %d availability zones", nats, azCount)
	}
	if n.HasTierType(SubnetPrivateEgress) {
		if nats == 0 {
			return invalid("network.nat_gateways", "private-egress tiers need at least one NAT gateway")
		}
		if !n.HasTierType(SubnetPublic) {
			return invalid("network.tiers", "NAT gateways need a public tier")
		}
	}

	if _, err := c.Layout(); err != nil {
		if errors.Is(err, ErrAddressSpace) {
			return fmt.Errorf("network.cidr: %w", err)
		}
		return invalid("network.cidr", "%v", err)
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	for _, svc := range c.Network.Endpoints.Gateway {
		if !slices.Contains(GatewayEndpointServices, svc) {
			return invalid("network.endpoints.gateway", "unknown gateway endpoint class %q", svc)
		}
	}
	for _, svc := range c.Network.Endpoints.Interface {
		if !slices.Contains(InterfaceEndpointServices, svc) {
			return invalid("network.endpoints.interface", "unknown interface endpoint class %q", svc)
		}
	}
	if len(c.Network.Endpoints.Interface) > 0 && !c.Network.HasTierType(SubnetPrivateEgress) && !c.Network.HasTierType(SubnetPrivateIsolated) {
		return invalid("network.endpoints.interface", "interface endpoints need a private tier")
	}
	return nil
}

func (c *Config) validateFleet() error {
	f := &c.Fleet
	if f.InstanceType == "" {
		return invalid("fleet.instance_type", "is required")
	}
	if f.MachineImage.ID == "" && f.MachineImage.SSMParameter == "" {
		return invalid("fleet.machine_image", "either id or ssm_parameter is required")
	}
	if f.MinCapacity < 1 {
		return invalid("fleet.min_capacity", "must be at least 1")
	}
	if f.MaxCapacity < f.MinCapacity {
		return invalid("fleet.max_capacity", "must be at least min_capacity (%d)", f.MinCapacity)
	}
	if f.DesiredCapacity != 0 && (f.DesiredCapacity < f.MinCapacity || f.DesiredCapacity > f.MaxCapacity) {
		return invalid("fleet.desired_capacity", "must be within [%d, %d]", f.MinCapacity, f.MaxCapacity)
	}
	tier, ok := c.Network.Tier(f.Tier)
	if !ok {
		return invalid("fleet.tier", "unknown tier %q", f.Tier)
	}
	if tier.Type != SubnetPrivateEgress || tier.Reserved {
		return invalid("fleet.tier", "tier %q must be a non-reserved private-egress tier", f.Tier)
	}
	if f.UserData != "" && f.UserDataFile != "" {
		return invalid("fleet.user_data", "user_data and user_data_file are mutually exclusive")
	}
	if f.HealthCheckGracePeriod < 0 {
		return invalid("fleet.health_check_grace_period", "must not be negative")
	}
	return nil
}

func (c *Config) validateRouter() error {
	r := &c.Router
	if r.ListenerPort < 1 || r.ListenerPort > 65535 {
		return invalid("router.listener_port", "must be between 1 and 65535")
	}
	if r.TargetPort < 1 || r.TargetPort > 65535 {
		return invalid("router.target_port", "must be between 1 and 65535")
	}
	tier, ok := c.Network.Tier(r.Tier)
	if !ok {
		return invalid("router.tier", "unknown tier %q", r.Tier)
	}
	if tier.Type != SubnetPublic || tier.Reserved {
		return invalid("router.tier", "tier %q must be a non-reserved public tier", r.Tier)
	}
	if len(c.AvailabilityZones()) < 2 {
		return invalid("network.max_azs", "an application load balancer needs subnets in at least 2 availability zones")
	}

	hc := &r.HealthCheck
	if !strings.HasPrefix(hc.Path, "/") {
		return invalid("router.health_check.path", "must start with /")
	}
	if hc.Interval < 5*time.Second || hc.Interval > 300*time.Second {
		return invalid("router.health_check.interval", "must be between 5s and 300s")
	}
	if hc.Timeout < 2*time.Second || hc.Timeout > 120*time.Second {
		return invalid("router.health_check.timeout", "must be between 2s and 120s")
	}
	if hc.Timeout >= hc.Interval {
		return invalid("router.health_check.timeout", "must be shorter than the interval")
	}
	if hc.HealthyThreshold < 2 || hc.HealthyThreshold > 10 {
		return invalid("router.health_check.healthy_threshold", "must be between 2 and 10")
	}
	if hc.UnhealthyThreshold < 2 || hc.UnhealthyThreshold > 10 {
		return invalid("router.health_check.unhealthy_threshold", "must be between 2 and 10")
	}
	if r.DeregistrationDelay < 0 || r.DeregistrationDelay > time.Hour {
		return invalid("router.deregistration_delay", "must be between 0s and 3600s")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := &c.Pipeline
	if p.ApplicationName == "" {
		return invalid("pipeline.application_name", "is required")
	}
	if p.DeploymentGroupName == "" {
		return invalid("pipeline.deployment_group_name", "is required")
	}
	m := p.MinimumHealthyHosts
	switch m.Type {
	case HostCount:
		if m.Value < 0 {
			return invalid("pipeline.minimum_healthy_hosts.value", "must not be negative")
		}
	case FleetPercent:
		if m.Value < 0 || m.Value > 99 {
			return invalid("pipeline.minimum_healthy_hosts.value", "percentage must be between 0 and 99")
		}
	default:
		return invalid("pipeline.minimum_healthy_hosts.type", "must be HOST_COUNT or FLEET_PERCENT (got %q)", m.Type)
	}
	if size := c.Fleet.Desired(); m.Resolve(size) > size {
		return invalid("pipeline.minimum_healthy_hosts", "floor of %d hosts exceeds the fleet of %d", m.Resolve(size), size)
	}
	return nil
}

func (c *Config) validateTrust() error {
	t := &c.Trust
	u, err := url.Parse(t.ProviderURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return invalid("trust.provider_url", "must be an https URL (got %q)", t.ProviderURL)
	}
	if t.Audience == "" {
		return invalid("trust.audience", "is required")
	}
	if len(t.Thumbprints) == 0 {
		return invalid("trust.thumbprints", "at least one certificate thumbprint is required")
	}
	for i, tp := range t.Thumbprints {
		if !thumbprintRegex.MatchString(tp) {
			return invalid(fmt.Sprintf("trust.thumbprints[%d]", i), "must be 40 hex characters")
		}
	}
	if t.SubjectPattern == "" {
		return invalid("trust.subject_pattern", "is required")
	}
	if !subjectRegex.MatchString(t.SubjectPattern) {
		return invalid("trust.subject_pattern", "must name one repository as repo:<owner>/<name>:<ref> (got %q)", t.SubjectPattern)
	}
	if !roleNameRegex.MatchString(t.RoleName) {
		return invalid("trust.role_name", "invalid IAM role name %q", t.RoleName)
	}
	if t.MaxSessionDuration < time.Hour || t.MaxSessionDuration > 12*time.Hour {
		return invalid("trust.max_session_duration", "must be between 1h and 12h")
	}
	return nil
}

func (c *Config) validateArtifactStore() error {
	a := &c.ArtifactStore
	if a.BucketName != "" && (!bucketNameRegex.MatchString(a.BucketName) || strings.Contains(a.BucketName, "..")) {
		return invalid("artifact_store.bucket_name", "invalid bucket name %q", a.BucketName)
	}
	switch a.Encryption {
	case EncryptionS3Managed:
	case EncryptionKMS:
		if !strings.HasPrefix(a.KMSKeyAlias, "alias/") {
			return invalid("artifact_store.kms_key_alias", "kms encryption needs a key alias of the form alias/<name>")
		}
	default:
		return invalid("artifact_store.encryption", "must be s3-managed or kms (got %q)", a.Encryption)
	}
	if a.RemovalPolicy != RemovalDestroy && a.RemovalPolicy != RemovalRetain {
		return invalid("artifact_store.removal_policy", "must be destroy or retain (got %q)", a.RemovalPolicy)
	}
	return nil
}
