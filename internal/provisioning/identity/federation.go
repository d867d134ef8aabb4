package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/trust"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Logical IDs and outputs of the trust federation.
const (
	OIDCProviderID     = "CIOidcProvider"
	DeployRoleID       = "CIDeployRole"
	DeployRoleOutput   = "DeployRoleArn"
	deployerPolicyName = "deployer"
)

// ErrSharedRole is returned when the deploy role would be the same role the
// deployment service executes with.
var ErrSharedRole = errors.New("deploy role must be distinct from the deployment service role")

// ProvisionProvider declares the OIDC provider for the CI issuer.
func ProvisionProvider(ctx *provisioning.Context) error {
	t := ctx.Config.Trust

	thumbprints := make([]any, 0, len(t.Thumbprints))
	for _, tp := range t.Thumbprints {
		thumbprints = append(thumbprints, tp)
	}

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: OIDCProviderID,
		Type:      "AWS::IAM::OIDCProvider",
		Component: topology.ComponentTrust,
		Properties: map[string]any{
			"Url":            t.ProviderURL,
			"ClientIdList":   []any{t.Audience},
			"ThumbprintList": thumbprints,
			"Tags":           ctx.Tags(topology.ComponentTrust).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.OIDCProvider = OIDCProviderID
	return nil
}

// DeployTargets returns the pipeline ARNs the deploy role may act on, as
// deploy-time substitutions of the pipeline resources.
func DeployTargets(state *provisioning.State) trust.DeployTargets {
	const prefix = "arn:${AWS::Partition}:codedeploy:${AWS::Region}:${AWS::AccountId}:"
	return trust.DeployTargets{
		Application: topology.Sub(fmt.Sprintf("%sapplication:${%s}", prefix, state.Application)),
		DeploymentGroup: topology.Sub(fmt.Sprintf("%sdeploymentgroup:${%s}/${%s}",
			prefix, state.Application, state.DeploymentGroup)),
		DeploymentConfig: topology.Sub(fmt.Sprintf("%sdeploymentconfig:${%s}", prefix, state.DeploymentConfig)),
	}
}

// ProvisionDeployRole declares the role CI assumes. Artifact store access is
// granted by the storage phase.
func ProvisionDeployRole(ctx *provisioning.Context) error {
	t := ctx.Config.Trust
	if t.RoleName == naming.ServiceRole(ctx.Config.StackName) {
		return fmt.Errorf("%w: %s", ErrSharedRole, t.RoleName)
	}

	trustPolicy := trust.TrustPolicy(
		topology.Ref(ctx.State.OIDCProvider),
		naming.OIDCHost(t.ProviderURL),
		t.Audience,
		t.SubjectPattern,
	)

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: DeployRoleID,
		Type:      "AWS::IAM::Role",
		Component: topology.ComponentTrust,
		Properties: map[string]any{
			"RoleName":                 t.RoleName,
			"AssumeRolePolicyDocument": trustPolicy,
			"MaxSessionDuration":       int(t.MaxSessionDuration / time.Second),
			"Policies": []any{
				map[string]any{
					"PolicyName":     deployerPolicyName,
					"PolicyDocument": trust.DeployerPolicy(DeployTargets(ctx.State)),
				},
			},
			"Tags": ctx.Tags(topology.ComponentTrust).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.DeployRole = DeployRoleID

	return ctx.Builder.AddOutput(DeployRoleOutput, topology.Output{
		Description: "Role assumed by CI with a web identity token",
		Value:       topology.GetAtt(DeployRoleID, "Arn"),
	})
}
