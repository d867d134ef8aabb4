package storage

import (
	"errors"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
)

const phase = "storage"

// Provisioner declares the release artifact store.
type Provisioner struct{}

// NewProvisioner creates a new storage provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.InstanceRole == "" || ctx.State.DeployRole == "" {
		return errors.New("storage needs the instance and deploy roles declared first")
	}

	// 1. Bucket and its key
	if err := ProvisionBucket(ctx); err != nil {
		return err
	}

	// 2. Grants for readers and writers
	return ProvisionGrants(ctx)
}
