package infrastructure

import (
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
)

const phase = "infrastructure"

// Provisioner declares infrastructure (network, endpoints, load balancer).
type Provisioner struct{}

// NewProvisioner creates a new infrastructure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	// 1. Network
	if err := ProvisionNetwork(ctx); err != nil {
		return err
	}

	// 2. Egress endpoints
	if err := ProvisionEndpoints(ctx); err != nil {
		return err
	}

	// 3. Load Balancer
	return ProvisionLoadBalancer(ctx)
}
