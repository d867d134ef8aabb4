package storage

import (
	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Logical IDs of the grants.
const (
	FleetReadPolicyID = "FleetReleaseReadPolicy"
	CIWritePolicyID   = "CIReleaseWritePolicy"
)

// ReaderPolicy is the fleet's access to releases: list and read, plus
// decrypt when the bucket uses a customer managed key.
func ReaderPolicy(ctx *provisioning.Context) policy.Document {
	doc := artifacts.ReadGrant(topology.GetAtt(BucketID, "Arn"), objectsOf(BucketID))
	if ctx.State.BucketKey != "" {
		doc = policy.Merge(doc, artifacts.KMSGrant(topology.GetAtt(ctx.State.BucketKey, "Arn"), ctx.Config.Region, false))
	}
	return doc
}

// WriterPolicy is CI's access to releases: everything the fleet gets plus
// uploads.
func WriterPolicy(ctx *provisioning.Context) policy.Document {
	doc := artifacts.ReadWriteGrant(topology.GetAtt(BucketID, "Arn"), objectsOf(BucketID))
	if ctx.State.BucketKey != "" {
		doc = policy.Merge(doc, artifacts.KMSGrant(topology.GetAtt(ctx.State.BucketKey, "Arn"), ctx.Config.Region, true))
	}
	return doc
}

// ProvisionGrants attaches the reader policy to the instance role and the
// writer policy to the deploy role.
func ProvisionGrants(ctx *provisioning.Context) error {
	grants := []struct {
		id   string
		name string
		role string
		doc  policy.Document
	}{
		{FleetReadPolicyID, "release-read", ctx.State.InstanceRole, ReaderPolicy(ctx)},
		{CIWritePolicyID, "release-write", ctx.State.DeployRole, WriterPolicy(ctx)},
	}
	for _, g := range grants {
		err := ctx.Declare(phase, topology.Resource{
			LogicalID: g.id,
			Type:      "AWS::IAM::Policy",
			Component: topology.ComponentStore,
			Properties: map[string]any{
				"PolicyName":     g.name,
				"PolicyDocument": g.doc,
				"Roles":          []any{topology.Ref(g.role)},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
