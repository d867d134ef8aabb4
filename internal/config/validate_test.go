package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testThumbprint = "6938fd4d98bab03faadb97b34396831e3780aea1"

func validConfig() *Config {
	cfg := &Config{
		StackName: "web",
		Region:    "eu-west-1",
		Fleet: FleetConfig{
			MinCapacity: 2,
			MaxCapacity: 4,
		},
		Trust: TrustConfig{
			Thumbprints:    []string{testThumbprint},
			SubjectPattern: "repo:acme/web:ref:refs/heads/main",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	assert.Equal(t, DefaultCIDR, cfg.Network.CIDR)
	assert.Len(t, cfg.Network.Tiers, 3)
	assert.Equal(t, []string{"s3"}, cfg.Network.Endpoints.Gateway)
	assert.Equal(t, "application", cfg.Fleet.Tier)
	assert.Equal(t, "public", cfg.Router.Tier)
	assert.Equal(t, 10*time.Second, cfg.Router.HealthCheck.Interval)
	assert.Equal(t, 5, cfg.Router.HealthCheck.HealthyThreshold)
	assert.Equal(t, 2, cfg.Router.HealthCheck.UnhealthyThreshold)
	assert.Equal(t, 10*time.Second, cfg.Router.DeregistrationDelay)
	assert.Equal(t, "web-app", cfg.Pipeline.ApplicationName)
	assert.Equal(t, FleetPercent, cfg.Pipeline.MinimumHealthyHosts.Type)
	assert.Equal(t, "web-ci-deploy", cfg.Trust.RoleName)
	assert.Equal(t, EncryptionS3Managed, cfg.ArtifactStore.Encryption)
	assert.Equal(t, RemovalDestroy, cfg.ArtifactStore.RemovalPolicy)
	assert.Equal(t, 2, cfg.Fleet.Desired())
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())
}

func TestValidate_MinimumHealthyHosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fleet     FleetConfig
		floor     MinimumHealthyHostsConfig
		wantFloor MinimumHealthyHostsConfig
	}{
		{
			name:      "single host defaults to a zero floor",
			fleet:     FleetConfig{MinCapacity: 1, MaxCapacity: 1},
			wantFloor: MinimumHealthyHostsConfig{Type: FleetPercent, Value: 0},
		},
		{
			name:      "min capacity one with a larger desired fleet",
			fleet:     FleetConfig{MinCapacity: 1, MaxCapacity: 6, DesiredCapacity: 4},
			wantFloor: MinimumHealthyHostsConfig{Type: FleetPercent, Value: DefaultMinimumHealthyPercent},
		},
		{
			name:      "host count floor checked against desired capacity",
			fleet:     FleetConfig{MinCapacity: 2, MaxCapacity: 6, DesiredCapacity: 4},
			floor:     MinimumHealthyHostsConfig{Type: HostCount, Value: 2},
			wantFloor: MinimumHealthyHostsConfig{Type: HostCount, Value: 2},
		},
		{
			name:      "floor equal to the fleet is left to the rollout",
			fleet:     FleetConfig{MinCapacity: 2, MaxCapacity: 2},
			floor:     MinimumHealthyHostsConfig{Type: HostCount, Value: 2},
			wantFloor: MinimumHealthyHostsConfig{Type: HostCount, Value: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				StackName: "web",
				Region:    "eu-west-1",
				Fleet:     tt.fleet,
				Pipeline:  PipelineConfig{MinimumHealthyHosts: tt.floor},
				Trust: TrustConfig{
					Thumbprints:    []string{testThumbprint},
					SubjectPattern: "repo:acme/web:ref:refs/heads/main",
				},
			}
			cfg.ApplyDefaults()

			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.wantFloor, cfg.Pipeline.MinimumHealthyHosts)
		})
	}
}

func TestValidate_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty stack name", func(c *Config) { c.StackName = "" }, "stack_name"},
		{"bad cidr", func(c *Config) { c.Network.CIDR = "10.0.0.0" }, "network.cidr"},
		{"host bits set", func(c *Config) { c.Network.CIDR = "10.0.0.1/16" }, "network.cidr"},
		{"block too large", func(c *Config) { c.Network.CIDR = "10.0.0.0/8" }, "network.cidr"},
		{"duplicate tier", func(c *Config) {
			c.Network.Tiers = append(c.Network.Tiers, TierConfig{Name: "public", Type: SubnetPublic, CIDRMask: 24})
		}, "network.tiers[3].name"},
		{"unknown tier type", func(c *Config) { c.Network.Tiers[2].Type = "dmz" }, "network.tiers[2].type"},
		{"zero nat with egress tier", func(c *Config) { zero := 0; c.Network.NATGateways = &zero }, "network.nat_gateways"},
		{"more nats than azs", func(c *Config) { n := 3; c.Network.NATGateways = &n }, "network.nat_gateways"},
		{"unknown gateway endpoint", func(c *Config) { c.Network.Endpoints.Gateway = []string{"sqs"} }, "network.endpoints.gateway"},
		{"unknown interface endpoint", func(c *Config) { c.Network.Endpoints.Interface = []string{"teleport"} }, "network.endpoints.interface"},
		{"zero capacity", func(c *Config) { c.Fleet.MinCapacity = 0 }, "fleet.min_capacity"},
		{"max below min", func(c *Config) { c.Fleet.MaxCapacity = 1 }, "fleet.max_capacity"},
		{"desired out of range", func(c *Config) { c.Fleet.DesiredCapacity = 9 }, "fleet.desired_capacity"},
		{"fleet in public tier", func(c *Config) { c.Fleet.Tier = "public" }, "fleet.tier"},
		{"fleet in isolated tier", func(c *Config) { c.Fleet.Tier = "data" }, "fleet.tier"},
		{"user data twice", func(c *Config) { c.Fleet.UserData = "a"; c.Fleet.UserDataFile = "b" }, "fleet.user_data"},
		{"router in private tier", func(c *Config) { c.Router.Tier = "application" }, "router.tier"},
		{"single az router", func(c *Config) { c.Network.MaxAZs = 1 }, "network.max_azs"},
		{"listener port", func(c *Config) { c.Router.ListenerPort = 70000 }, "router.listener_port"},
		{"timeout not below interval", func(c *Config) { c.Router.HealthCheck.Timeout = 10 * time.Second }, "router.health_check.timeout"},
		{"healthy threshold", func(c *Config) { c.Router.HealthCheck.HealthyThreshold = 11 }, "router.health_check.healthy_threshold"},
		{"health path", func(c *Config) { c.Router.HealthCheck.Path = "health" }, "router.health_check.path"},
		{"unknown min healthy type", func(c *Config) { c.Pipeline.MinimumHealthyHosts.Type = "ALL" }, "pipeline.minimum_healthy_hosts.type"},
		{"floor exceeds fleet", func(c *Config) {
			c.Pipeline.MinimumHealthyHosts = MinimumHealthyHostsConfig{Type: HostCount, Value: 3}
		}, "pipeline.minimum_healthy_hosts"},
		{"floor exceeds desired capacity", func(c *Config) {
			c.Fleet.DesiredCapacity = 3
			c.Pipeline.MinimumHealthyHosts = MinimumHealthyHostsConfig{Type: HostCount, Value: 4}
		}, "pipeline.minimum_healthy_hosts"},
		{"http issuer", func(c *Config) { c.Trust.ProviderURL = "http://issuer.example.com" }, "trust.provider_url"},
		{"no thumbprint", func(c *Config) { c.Trust.Thumbprints = nil }, "trust.thumbprints"},
		{"short thumbprint", func(c *Config) { c.Trust.Thumbprints = []string{"abc"} }, "trust.thumbprints[0]"},
		{"wildcard repository", func(c *Config) { c.Trust.SubjectPattern = "repo:*" }, "trust.subject_pattern"},
		{"wildcard owner", func(c *Config) { c.Trust.SubjectPattern = "repo:*/web:*" }, "trust.subject_pattern"},
		{"session too long", func(c *Config) { c.Trust.MaxSessionDuration = 24 * time.Hour }, "trust.max_session_duration"},
		{"bucket name", func(c *Config) { c.ArtifactStore.BucketName = "Releases" }, "artifact_store.bucket_name"},
		{"kms without alias", func(c *Config) { c.ArtifactStore.Encryption = EncryptionKMS }, "artifact_store.kms_key_alias"},
		{"unknown encryption", func(c *Config) { c.ArtifactStore.Encryption = "none" }, "artifact_store.encryption"},
		{"unknown removal policy", func(c *Config) { c.ArtifactStore.RemovalPolicy = "snapshot" }, "artifact_store.removal_policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_AddressSpaceIsFatal(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Network.CIDR = "10.0.0.0/24"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAddressSpace)
}

func TestMinimumHealthyHosts_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy MinimumHealthyHostsConfig
		size   int
		want   int
	}{
		{MinimumHealthyHostsConfig{Type: HostCount, Value: 2}, 5, 2},
		{MinimumHealthyHostsConfig{Type: FleetPercent, Value: 50}, 4, 2},
		{MinimumHealthyHostsConfig{Type: FleetPercent, Value: 50}, 3, 2},
		{MinimumHealthyHostsConfig{Type: FleetPercent, Value: 75}, 2, 2},
		{MinimumHealthyHostsConfig{Type: FleetPercent, Value: 0}, 3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.policy.Resolve(tt.size), "%+v of %d", tt.policy, tt.size)
	}
}

func TestLayout_NATIndexWrapsAZGroups(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Network.MaxAZs = 3
	one := 1
	cfg.Network.NATGateways = &one

	layout, err := cfg.Layout()
	require.NoError(t, err)

	assert.Equal(t, []string{"eu-west-1a", "eu-west-1b", "eu-west-1c"}, layout.AZs)
	assert.Equal(t, 0, layout.NATIndex(2))
	assert.Len(t, layout.SubnetsByType(SubnetPrivateEgress), 3)
	assert.Len(t, layout.SubnetsByTier("data"), 3)
}
