package identity

import (
	"errors"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
)

const phase = "identity"

// Provisioner declares the trust federation.
type Provisioner struct{}

// NewProvisioner creates a new identity provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.Application == "" || ctx.State.DeploymentGroup == "" {
		return errors.New("identity needs the deployment pipeline declared first")
	}
	if err := ProvisionProvider(ctx); err != nil {
		return err
	}
	return ProvisionDeployRole(ctx)
}
