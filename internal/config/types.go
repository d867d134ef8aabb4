package config

import "time"

// Config is the desired state of one stack: a network, the compute fleet
// behind a load balancer, the deployment pipeline that rolls releases onto
// the fleet, the OIDC trust used by CI and the release artifact bucket.
type Config struct {
	StackName   string            `yaml:"stack_name"`
	Description string            `yaml:"description,omitempty"`
	Region      string            `yaml:"region"`
	Account     string            `yaml:"account,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty"`

	Network       NetworkConfig       `yaml:"network"`
	Fleet         FleetConfig         `yaml:"fleet"`
	Router        RouterConfig        `yaml:"router"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Trust         TrustConfig         `yaml:"trust"`
	ArtifactStore ArtifactStoreConfig `yaml:"artifact_store"`
}

// SubnetType is the visibility class of a tier.
type SubnetType string

const (
	// SubnetPublic subnets route 0.0.0.0/0 to the internet gateway.
	SubnetPublic SubnetType = "public"
	// SubnetPrivateEgress subnets route 0.0.0.0/0 through a NAT gateway.
	SubnetPrivateEgress SubnetType = "private-egress"
	// SubnetPrivateIsolated subnets have no default route.
	SubnetPrivateIsolated SubnetType = "private-isolated"
)

// NetworkConfig describes the address space and its tiers.
type NetworkConfig struct {
	CIDR              string         `yaml:"cidr"`
	MaxAZs            int            `yaml:"max_azs"`
	AvailabilityZones []string       `yaml:"availability_zones,omitempty"`
	NATGateways       *int           `yaml:"nat_gateways,omitempty"`
	Tiers             []TierConfig   `yaml:"tiers"`
	Endpoints         EndpointConfig `yaml:"endpoints"`
}

// TierConfig is one subnet tier, replicated across every AZ.
// A zero CIDRMask shares the space left by the explicit tiers.
type TierConfig struct {
	Name     string     `yaml:"name"`
	Type     SubnetType `yaml:"type"`
	CIDRMask int        `yaml:"cidr_mask,omitempty"`
	Reserved bool       `yaml:"reserved,omitempty"`
}

// EndpointConfig lists the managed-service traffic classes that stay on the
// provider backbone instead of leaving through NAT.
type EndpointConfig struct {
	Gateway   []string `yaml:"gateway,omitempty"`
	Interface []string `yaml:"interface,omitempty"`
}

// FleetConfig describes the autoscaling group of application hosts.
type FleetConfig struct {
	InstanceType           string        `yaml:"instance_type"`
	MachineImage           ImageConfig   `yaml:"machine_image"`
	MinCapacity            int           `yaml:"min_capacity"`
	MaxCapacity            int           `yaml:"max_capacity"`
	DesiredCapacity        int           `yaml:"desired_capacity,omitempty"`
	Tier                   string        `yaml:"tier,omitempty"`
	UserData               string        `yaml:"user_data,omitempty"`
	UserDataFile           string        `yaml:"user_data_file,omitempty"`
	HealthCheckGracePeriod time.Duration `yaml:"health_check_grace_period,omitempty"`
}

// ImageConfig selects the machine image either by ID or by SSM parameter.
type ImageConfig struct {
	ID           string `yaml:"id,omitempty"`
	SSMParameter string `yaml:"ssm_parameter,omitempty"`
}

// RouterConfig describes the internet-facing load balancer.
type RouterConfig struct {
	ListenerPort        int               `yaml:"listener_port"`
	TargetPort          int               `yaml:"target_port"`
	Tier                string            `yaml:"tier,omitempty"`
	HealthCheck         HealthCheckConfig `yaml:"health_check"`
	DeregistrationDelay time.Duration     `yaml:"deregistration_delay"`
}

// HealthCheckConfig holds the target group health-check parameters.
type HealthCheckConfig struct {
	Path               string        `yaml:"path"`
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`
	HealthyThreshold   int           `yaml:"healthy_threshold"`
	UnhealthyThreshold int           `yaml:"unhealthy_threshold"`
}

// PipelineConfig describes the deployment application and group.
type PipelineConfig struct {
	ApplicationName      string                    `yaml:"application_name,omitempty"`
	DeploymentGroupName  string                    `yaml:"deployment_group_name,omitempty"`
	DeploymentConfigName string                    `yaml:"deployment_config_name,omitempty"`
	MinimumHealthyHosts  MinimumHealthyHostsConfig `yaml:"minimum_healthy_hosts"`
}

// Minimum healthy hosts policy types.
const (
	HostCount    = "HOST_COUNT"
	FleetPercent = "FLEET_PERCENT"
)

// MinimumHealthyHostsConfig is the floor a rollout must respect.
type MinimumHealthyHostsConfig struct {
	Type  string `yaml:"type"`
	Value int    `yaml:"value"`
}

// TrustConfig describes the OIDC federation for the external CI system.
type TrustConfig struct {
	ProviderURL        string        `yaml:"provider_url"`
	Audience           string        `yaml:"audience"`
	Thumbprints        []string      `yaml:"thumbprints"`
	SubjectPattern     string        `yaml:"subject_pattern"`
	RoleName           string        `yaml:"role_name,omitempty"`
	MaxSessionDuration time.Duration `yaml:"max_session_duration,omitempty"`
}

// Artifact store encryption modes and removal policies.
const (
	EncryptionS3Managed = "s3-managed"
	EncryptionKMS       = "kms"

	RemovalDestroy = "destroy"
	RemovalRetain  = "retain"
)

// ArtifactStoreConfig describes the release artifact bucket.
type ArtifactStoreConfig struct {
	BucketName    string `yaml:"bucket_name,omitempty"`
	Encryption    string `yaml:"encryption"`
	KMSKeyAlias   string `yaml:"kms_key_alias,omitempty"`
	Versioned     bool   `yaml:"versioned,omitempty"`
	RemovalPolicy string `yaml:"removal_policy"`
}

// NATGatewayCount returns the configured NAT count, defaulting to one per AZ.
func (n *NetworkConfig) NATGatewayCount(azCount int) int {
	if n.NATGateways == nil {
		return azCount
	}
	return *n.NATGateways
}

// HasTierType reports whether a non-reserved tier of the given type exists.
func (n *NetworkConfig) HasTierType(t SubnetType) bool {
	for _, tier := range n.Tiers {
		if tier.Type == t && !tier.Reserved {
			return true
		}
	}
	return false
}

// Tier returns the tier with the given name.
func (n *NetworkConfig) Tier(name string) (TierConfig, bool) {
	for _, tier := range n.Tiers {
		if tier.Name == name {
			return tier, true
		}
	}
	return TierConfig{}, false
}

// FirstTierOfType returns the name of the first non-reserved tier of type t.
func (n *NetworkConfig) FirstTierOfType(t SubnetType) string {
	for _, tier := range n.Tiers {
		if tier.Type == t && !tier.Reserved {
			return tier.Name
		}
	}
	return ""
}

// Desired returns the desired capacity, falling back to the minimum.
func (f *FleetConfig) Desired() int {
	if f.DesiredCapacity == 0 {
		return f.MinCapacity
	}
	return f.DesiredCapacity
}

// Resolve converts the policy into a host count for a fleet of the given
// size. Percentages round up.
func (m MinimumHealthyHostsConfig) Resolve(fleetSize int) int {
	if m.Type == FleetPercent {
		return (fleetSize*m.Value + 99) / 100
	}
	return m.Value
}
