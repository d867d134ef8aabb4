package compute

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Logical IDs of the fleet.
const (
	InstanceRoleID          = "InstanceRole"
	InstanceProfileID       = "InstanceProfile"
	InstanceSecurityGroupID = "InstanceSecurityGroup"
	LaunchTemplateID        = "LaunchTemplate"
	AutoScalingGroupID      = "AutoScalingGroup"
)

// ssmManagedPolicy lets the deployment agent and session manager reach the
// instances without inbound SSH.
const ssmManagedPolicy = "arn:${AWS::Partition}:iam::aws:policy/AmazonSSMManagedInstanceCore"

// ImageID returns the launch template image: a literal ID, or a dynamic
// reference resolved from the parameter store at deploy time.
func ImageID(img config.ImageConfig) string {
	if img.ID != "" {
		return img.ID
	}
	return fmt.Sprintf("{{resolve:ssm:%s}}", img.SSMParameter)
}

// ProvisionInstanceRole declares the role and profile every fleet member
// runs with. Read access to releases is granted by the storage phase.
func ProvisionInstanceRole(ctx *provisioning.Context) error {
	stack := ctx.Config.StackName

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: InstanceRoleID,
		Type:      "AWS::IAM::Role",
		Component: topology.ComponentFleet,
		Properties: map[string]any{
			"RoleName":                 naming.InstanceRole(stack),
			"AssumeRolePolicyDocument": policy.ServiceTrust("ec2.amazonaws.com"),
			"ManagedPolicyArns":        []any{topology.Sub(ssmManagedPolicy)},
			"Tags":                     ctx.Tags(topology.ComponentFleet).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.InstanceRole = InstanceRoleID

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: InstanceProfileID,
		Type:      "AWS::IAM::InstanceProfile",
		Component: topology.ComponentFleet,
		Properties: map[string]any{
			"Roles": []any{topology.Ref(InstanceRoleID)},
		},
	})
	if err != nil {
		return err
	}
	ctx.State.InstanceProfile = InstanceProfileID
	return nil
}

// ProvisionFleet declares the instance security group, launch template and
// autoscaling group. Members live only in the fleet tier, take traffic only
// from the load balancer, and are replaced when the target group reports
// them unhealthy after the grace period.
func ProvisionFleet(ctx *provisioning.Context) error {
	cfg := ctx.Config
	f := cfg.Fleet
	stack := cfg.StackName

	subnetIDs := ctx.State.Subnets[f.Tier]
	if len(subnetIDs) == 0 {
		return fmt.Errorf("fleet tier %q has no subnets", f.Tier)
	}
	subnets := make([]any, 0, len(subnetIDs))
	for _, id := range subnetIDs {
		subnets = append(subnets, topology.Ref(id))
	}

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: InstanceSecurityGroupID,
		Type:      "AWS::EC2::SecurityGroup",
		Component: topology.ComponentFleet,
		Properties: map[string]any{
			"GroupDescription": fmt.Sprintf("%s fleet", stack),
			"VpcId":            topology.Ref(ctx.State.VPC),
			"SecurityGroupIngress": []any{
				map[string]any{
					"IpProtocol":            "tcp",
					"FromPort":              cfg.Router.TargetPort,
					"ToPort":                cfg.Router.TargetPort,
					"SourceSecurityGroupId": topology.GetAtt(ctx.State.LoadBalancerSecurityGroup, "GroupId"),
					"Description":           "Load balancer to target",
				},
			},
			"Tags": ctx.Tags(topology.ComponentFleet).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.InstanceSecurityGroup = InstanceSecurityGroupID

	data := map[string]any{
		"InstanceType":       f.InstanceType,
		"ImageId":            ImageID(f.MachineImage),
		"IamInstanceProfile": map[string]any{"Arn": topology.GetAtt(InstanceProfileID, "Arn")},
		"SecurityGroupIds":   []any{topology.GetAtt(InstanceSecurityGroupID, "GroupId")},
		"MetadataOptions":    map[string]any{"HttpTokens": "required"},
		"TagSpecifications": []any{
			map[string]any{
				"ResourceType": "instance",
				"Tags":         ctx.Tags(topology.ComponentFleet).WithName(naming.AutoScalingGroup(stack)).Build(),
			},
		},
	}
	if ctx.UserData != "" {
		data["UserData"] = topology.Base64{Value: ctx.UserData}
	}

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: LaunchTemplateID,
		Type:      "AWS::EC2::LaunchTemplate",
		Component: topology.ComponentFleet,
		Properties: map[string]any{
			"LaunchTemplateName": naming.LaunchTemplate(stack),
			"LaunchTemplateData": data,
		},
	})
	if err != nil {
		return err
	}
	ctx.State.LaunchTemplate = LaunchTemplateID

	// Members bootstrap over the NAT path, so the group waits for it.
	err = ctx.Declare(phase, topology.Resource{
		LogicalID: AutoScalingGroupID,
		Type:      "AWS::AutoScaling::AutoScalingGroup",
		Component: topology.ComponentFleet,
		Properties: map[string]any{
			"AutoScalingGroupName": naming.AutoScalingGroup(stack),
			"MinSize":              strconv.Itoa(f.MinCapacity),
			"MaxSize":              strconv.Itoa(f.MaxCapacity),
			"DesiredCapacity":      strconv.Itoa(f.Desired()),
			"VPCZoneIdentifier":    subnets,
			"LaunchTemplate": map[string]any{
				"LaunchTemplateId": topology.Ref(LaunchTemplateID),
				"Version":          topology.GetAtt(LaunchTemplateID, "LatestVersionNumber"),
			},
			"TargetGroupARNs":        []any{topology.Ref(ctx.State.TargetGroup)},
			"HealthCheckType":        "ELB",
			"HealthCheckGracePeriod": int(f.HealthCheckGracePeriod / time.Second),
			"Tags":                   ctx.Tags(topology.ComponentFleet).WithName(naming.AutoScalingGroup(stack)).BuildPropagated(),
		},
		DependsOn: append([]string(nil), ctx.State.DefaultRoutes[f.Tier]...),
	})
	if err != nil {
		return err
	}
	ctx.State.AutoScalingGroup = AutoScalingGroupID
	return nil
}
