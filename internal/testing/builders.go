package testing

import (
	"maps"

	"github.com/joel-cunningham/cdk-example/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining. Build applies
// defaults, so the result validates unless a With call broke it on purpose.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			StackName: "web",
			Region:    Region,
			Account:   Account,
			Fleet: config.FleetConfig{
				MinCapacity: 2,
				MaxCapacity: 4,
				UserData:    UserData,
			},
			Trust: config.TrustConfig{
				Thumbprints:    []string{Thumbprint},
				SubjectPattern: SubjectPattern,
			},
		},
	}
}

// WithStackName sets the stack name.
func (b *ConfigBuilder) WithStackName(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.StackName = name
	return newBuilder
}

// WithRegion sets the region.
func (b *ConfigBuilder) WithRegion(region string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Region = region
	return newBuilder
}

// WithCapacity sets the fleet bounds.
func (b *ConfigBuilder) WithCapacity(minCapacity, maxCapacity int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Fleet.MinCapacity = minCapacity
	newBuilder.cfg.Fleet.MaxCapacity = maxCapacity
	return newBuilder
}

// WithMinimumHealthyHosts sets the deployment floor.
func (b *ConfigBuilder) WithMinimumHealthyHosts(kind string, value int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Pipeline.MinimumHealthyHosts = config.MinimumHealthyHostsConfig{Type: kind, Value: value}
	return newBuilder
}

// WithTiers replaces the network tiers.
func (b *ConfigBuilder) WithTiers(tiers ...config.TierConfig) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Network.Tiers = append([]config.TierConfig(nil), tiers...)
	return newBuilder
}

// WithNATGateways sets the NAT gateway count.
func (b *ConfigBuilder) WithNATGateways(n int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Network.NATGateways = &n
	return newBuilder
}

// WithEndpoints sets the gateway and interface endpoint classes.
func (b *ConfigBuilder) WithEndpoints(gateway, iface []string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Network.Endpoints = config.EndpointConfig{
		Gateway:   cloneStringSlice(gateway),
		Interface: cloneStringSlice(iface),
	}
	return newBuilder
}

// WithKMS switches the artifact store to a customer managed key.
func (b *ConfigBuilder) WithKMS(alias string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.ArtifactStore.Encryption = config.EncryptionKMS
	newBuilder.cfg.ArtifactStore.KMSKeyAlias = alias
	return newBuilder
}

// WithRemovalPolicy sets the artifact store removal policy.
func (b *ConfigBuilder) WithRemovalPolicy(policy string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.ArtifactStore.RemovalPolicy = policy
	return newBuilder
}

// WithTags sets stack-wide tags.
func (b *ConfigBuilder) WithTags(tags map[string]string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Tags = cloneStringMap(tags)
	return newBuilder
}

// Build returns the config with defaults applied.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	cfg.ApplyDefaults()
	return &cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.Tags = cloneStringMap(b.cfg.Tags)
	newCfg.Network.Tiers = append([]config.TierConfig(nil), b.cfg.Network.Tiers...)
	newCfg.Network.AvailabilityZones = cloneStringSlice(b.cfg.Network.AvailabilityZones)
	newCfg.Network.Endpoints.Gateway = cloneStringSlice(b.cfg.Network.Endpoints.Gateway)
	newCfg.Network.Endpoints.Interface = cloneStringSlice(b.cfg.Network.Endpoints.Interface)
	if b.cfg.Network.NATGateways != nil {
		n := *b.cfg.Network.NATGateways
		newCfg.Network.NATGateways = &n
	}
	newCfg.Trust.Thumbprints = cloneStringSlice(b.cfg.Trust.Thumbprints)
	return &ConfigBuilder{cfg: newCfg}
}

// cloneStringMap creates a deep copy of a string map.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cloned := make(map[string]string, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// cloneStringSlice creates a copy of a string slice.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cloned := make([]string, len(s))
	copy(cloned, s)
	return cloned
}

// MinimalConfig returns a minimal valid config for simple tests.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().Build()
}

// FullConfig returns a config exercising every optional component: three
// AZs, interface endpoints, a KMS key and a retained bucket.
func FullConfig() *config.Config {
	cfg := NewConfigBuilder().
		WithCapacity(3, 6).
		WithMinimumHealthyHosts(config.HostCount, 2).
		WithEndpoints([]string{"s3", "dynamodb"}, []string{"ssm", "ssmmessages", "ec2messages", "codedeploy"}).
		WithKMS("alias/web-releases").
		WithRemovalPolicy(config.RemovalRetain).
		WithTags(map[string]string{"team": "platform"}).
		Build()
	cfg.Network.MaxAZs = 3
	cfg.ArtifactStore.Versioned = true
	return cfg
}
