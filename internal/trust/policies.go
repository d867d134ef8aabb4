package trust

import (
	"github.com/joel-cunningham/cdk-example/internal/policy"
)

// AssumeAction is the action a federated token presents.
const AssumeAction = "sts:AssumeRoleWithWebIdentity"

// Deployment actions granted to the CI role.
var (
	DeployActions   = []string{"codedeploy:CreateDeployment", "codedeploy:GetDeployment"}
	RevisionActions = []string{"codedeploy:RegisterApplicationRevision", "codedeploy:GetApplicationRevision"}
	ConfigActions   = []string{"codedeploy:GetDeploymentConfig"}
)

// TrustPolicy allows tokens from the provider whose audience equals
// audience and whose subject matches subjectPattern. The provider may be an
// ARN or a topology reference.
func TrustPolicy(provider any, host, audience, subjectPattern string) policy.Document {
	return policy.NewDocument(policy.Statement{
		Sid:       "AllowCIFederation",
		Effect:    policy.Allow,
		Principal: map[string][]any{policy.PrincipalFederated: {provider}},
		Action:    []string{AssumeAction},
		Condition: map[string]map[string][]string{
			"StringEquals": {host + ":aud": {audience}},
			"StringLike":   {host + ":sub": {subjectPattern}},
		},
	})
}

// DeployTargets are the resources the CI role may act on. Values may be ARNs
// or topology references.
type DeployTargets struct {
	Application      any
	DeploymentGroup  any
	DeploymentConfig any
}

// DeployerPolicy grants starting and reading deployments and registering
// revisions, nothing else.
func DeployerPolicy(t DeployTargets) policy.Document {
	return policy.NewDocument(
		policy.Statement{
			Sid:      "Deployments",
			Effect:   policy.Allow,
			Action:   DeployActions,
			Resource: []any{t.DeploymentGroup},
		},
		policy.Statement{
			Sid:      "Revisions",
			Effect:   policy.Allow,
			Action:   RevisionActions,
			Resource: []any{t.Application},
		},
		policy.Statement{
			Sid:      "DeploymentConfig",
			Effect:   policy.Allow,
			Action:   ConfigActions,
			Resource: []any{t.DeploymentConfig},
		},
	)
}
