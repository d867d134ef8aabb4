package config

import (
	"fmt"
	"strings"
)

// ApplyDefaults fills unset fields. Capacities, thumbprints and the CI
// subject pattern have no defaults and must be declared.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Description == "" && c.StackName != "" {
		c.Description = fmt.Sprintf("%s: network, fleet, load balancer and deployment pipeline", c.StackName)
	}

	c.Network.applyDefaults()
	c.Fleet.applyDefaults(&c.Network)
	c.Router.applyDefaults(&c.Network)
	c.Pipeline.applyDefaults(c.StackName, &c.Fleet)
	c.Trust.applyDefaults(c.StackName)
	c.ArtifactStore.applyDefaults()
}

func (n *NetworkConfig) applyDefaults() {
	if n.CIDR == "" {
		n.CIDR = DefaultCIDR
	}
	if n.MaxAZs == 0 {
		n.MaxAZs = DefaultMaxAZs
	}
	if len(n.Tiers) == 0 {
		n.Tiers = DefaultTiers()
	}
	if n.Endpoints.Gateway == nil && n.Endpoints.Interface == nil {
		n.Endpoints.Gateway = []string{"s3"}
	}
	for i := range n.Endpoints.Gateway {
		n.Endpoints.Gateway[i] = strings.ToLower(n.Endpoints.Gateway[i])
	}
	for i := range n.Endpoints.Interface {
		n.Endpoints.Interface[i] = strings.ToLower(n.Endpoints.Interface[i])
	}
}

func (f *FleetConfig) applyDefaults(n *NetworkConfig) {
	if f.InstanceType == "" {
		f.InstanceType = DefaultInstanceType
	}
	if f.MachineImage.ID == "" && f.MachineImage.SSMParameter == "" {
		f.MachineImage.SSMParameter = DefaultImageParameter
	}
	if f.Tier == "" {
		f.Tier = n.FirstTierOfType(SubnetPrivateEgress)
	}
	if f.HealthCheckGracePeriod == 0 {
		f.HealthCheckGracePeriod = DefaultHealthCheckGracePeriod
	}
}

func (r *RouterConfig) applyDefaults(n *NetworkConfig) {
	if r.ListenerPort == 0 {
		r.ListenerPort = DefaultListenerPort
	}
	if r.TargetPort == 0 {
		r.TargetPort = DefaultTargetPort
	}
	if r.Tier == "" {
		r.Tier = n.FirstTierOfType(SubnetPublic)
	}
	hc := &r.HealthCheck
	if hc.Path == "" {
		hc.Path = DefaultHealthCheckPath
	}
	if hc.Interval == 0 {
		hc.Interval = DefaultHealthCheckInterval
	}
	if hc.Timeout == 0 {
		hc.Timeout = DefaultHealthCheckTimeout
	}
	if hc.HealthyThreshold == 0 {
		hc.HealthyThreshold = DefaultHealthyThreshold
	}
	if hc.UnhealthyThreshold == 0 {
		hc.UnhealthyThreshold = DefaultUnhealthyThreshold
	}
	if r.DeregistrationDelay == 0 {
		r.DeregistrationDelay = DefaultDeregistrationDelay
	}
}

func (p *PipelineConfig) applyDefaults(stack string, f *FleetConfig) {
	if p.ApplicationName == "" {
		p.ApplicationName = stack + "-app"
	}
	if p.DeploymentGroupName == "" {
		p.DeploymentGroupName = stack + "-fleet"
	}
	if p.DeploymentConfigName == "" {
		p.DeploymentConfigName = stack + "-min-healthy"
	}
	if p.MinimumHealthyHosts.Type == "" {
		percent := DefaultMinimumHealthyPercent
		// A single host has to go out of service to be updated.
		if f.Desired() == 1 {
			percent = 0
		}
		p.MinimumHealthyHosts = MinimumHealthyHostsConfig{Type: FleetPercent, Value: percent}
	}
}

func (t *TrustConfig) applyDefaults(stack string) {
	if t.ProviderURL == "" {
		t.ProviderURL = DefaultProviderURL
	}
	t.ProviderURL = strings.TrimSuffix(t.ProviderURL, "/")
	if t.Audience == "" {
		t.Audience = DefaultAudience
	}
	if t.RoleName == "" {
		t.RoleName = stack + "-ci-deploy"
	}
	if t.MaxSessionDuration == 0 {
		t.MaxSessionDuration = DefaultMaxSessionDuration
	}
	for i := range t.Thumbprints {
		t.Thumbprints[i] = strings.ToLower(t.Thumbprints[i])
	}
}

func (a *ArtifactStoreConfig) applyDefaults() {
	if a.Encryption == "" {
		a.Encryption = EncryptionS3Managed
	}
	if a.RemovalPolicy == "" {
		a.RemovalPolicy = RemovalDestroy
	}
}
