package compute

import (
	"errors"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
)

const phase = "compute"

// Provisioner declares the compute fleet.
type Provisioner struct{}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.VPC == "" || ctx.State.TargetGroup == "" || ctx.State.LoadBalancerSecurityGroup == "" {
		return errors.New("compute needs the network and load balancer declared first")
	}

	// 1. Identity of the instances
	if err := ProvisionInstanceRole(ctx); err != nil {
		return err
	}

	// 2. Launch template and group
	return ProvisionFleet(ctx)
}
