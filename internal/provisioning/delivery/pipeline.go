package delivery

import (
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Logical IDs of the pipeline.
const (
	ServiceRoleID      = "DeploymentServiceRole"
	ApplicationID      = "Application"
	DeploymentConfigID = "DeploymentConfig"
	DeploymentGroupID  = "DeploymentGroup"
)

// Deployment styles.
const (
	StyleInPlace       = "IN_PLACE"
	WithTrafficControl = "WITH_TRAFFIC_CONTROL"
	ComputeServer      = "Server"
)

const serviceManagedPolicy = "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSCodeDeployRole"

// ProvisionServiceRole declares the role the deployment service assumes to
// act on the fleet. It carries the service managed policy and nothing else.
func ProvisionServiceRole(ctx *provisioning.Context) error {
	err := ctx.Declare(phase, topology.Resource{
		LogicalID: ServiceRoleID,
		Type:      "AWS::IAM::Role",
		Component: topology.ComponentPipeline,
		Properties: map[string]any{
			"RoleName":                 naming.ServiceRole(ctx.Config.StackName),
			"AssumeRolePolicyDocument": policy.ServiceTrust("codedeploy.amazonaws.com"),
			"ManagedPolicyArns":        []any{topology.Sub(serviceManagedPolicy)},
			"Tags":                     ctx.Tags(topology.ComponentPipeline).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.ServiceRole = ServiceRoleID
	return nil
}

// ProvisionPipeline declares the application, deployment configuration and
// deployment group. Rollouts run in place behind the load balancer: each
// batch is deregistered, updated and re-registered while the configured
// minimum of hosts keeps serving.
func ProvisionPipeline(ctx *provisioning.Context) error {
	p := ctx.Config.Pipeline

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: ApplicationID,
		Type:      "AWS::CodeDeploy::Application",
		Component: topology.ComponentPipeline,
		Properties: map[string]any{
			"ApplicationName": p.ApplicationName,
			"ComputePlatform": ComputeServer,
			"Tags":            ctx.Tags(topology.ComponentPipeline).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.Application = ApplicationID

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: DeploymentConfigID,
		Type:      "AWS::CodeDeploy::DeploymentConfig",
		Component: topology.ComponentPipeline,
		Properties: map[string]any{
			"DeploymentConfigName": p.DeploymentConfigName,
			"ComputePlatform":      ComputeServer,
			"MinimumHealthyHosts": map[string]any{
				"Type":  p.MinimumHealthyHosts.Type,
				"Value": p.MinimumHealthyHosts.Value,
			},
		},
	})
	if err != nil {
		return err
	}
	ctx.State.DeploymentConfig = DeploymentConfigID

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: DeploymentGroupID,
		Type:      "AWS::CodeDeploy::DeploymentGroup",
		Component: topology.ComponentPipeline,
		Properties: map[string]any{
			"ApplicationName":      topology.Ref(ApplicationID),
			"DeploymentGroupName":  p.DeploymentGroupName,
			"DeploymentConfigName": topology.Ref(DeploymentConfigID),
			"ServiceRoleArn":       topology.GetAtt(ServiceRoleID, "Arn"),
			"AutoScalingGroups":    []any{topology.Ref(ctx.State.AutoScalingGroup)},
			"DeploymentStyle": map[string]any{
				"DeploymentType":   StyleInPlace,
				"DeploymentOption": WithTrafficControl,
			},
			"LoadBalancerInfo": map[string]any{
				"TargetGroupInfoList": []any{
					map[string]any{"Name": topology.GetAtt(ctx.State.TargetGroup, "TargetGroupName")},
				},
			},
			"AutoRollbackConfiguration": map[string]any{"Enabled": false},
		},
	})
	if err != nil {
		return err
	}
	ctx.State.DeploymentGroup = DeploymentGroupID

	return ctx.Builder.AddOutput("DeploymentGroupName", topology.Output{
		Description: "Deployment group the CI role targets",
		Value:       topology.Ref(DeploymentGroupID),
	})
}
