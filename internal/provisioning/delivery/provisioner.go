package delivery

import (
	"errors"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
)

const phase = "delivery"

// Provisioner declares the deployment pipeline.
type Provisioner struct{}

// NewProvisioner creates a new delivery provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.AutoScalingGroup == "" || ctx.State.TargetGroup == "" {
		return errors.New("delivery needs the fleet and target group declared first")
	}
	if err := ProvisionServiceRole(ctx); err != nil {
		return err
	}
	return ProvisionPipeline(ctx)
}
