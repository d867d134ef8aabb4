package infrastructure

import (
	"fmt"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// EndpointSecurityGroupID is the security group shared by interface endpoints.
const EndpointSecurityGroupID = "EndpointSecurityGroup"

const httpsPort = 443

// ServiceName returns the regional service name of an endpoint class.
func ServiceName(class string) topology.Sub {
	return topology.Sub(fmt.Sprintf("com.amazonaws.${AWS::Region}.%s", class))
}

// EndpointID returns the logical ID of the endpoint for a traffic class.
func EndpointID(class string) string {
	return naming.LogicalID(class, "endpoint")
}

// ProvisionEndpoints keeps the listed managed-service traffic on the provider
// network. Gateway endpoints attach to every private route table; interface
// endpoints get private DNS, one network interface per AZ and a security
// group admitting HTTPS from the VPC block. Unlisted classes are untouched.
func ProvisionEndpoints(ctx *provisioning.Context) error {
	endpoints := ctx.Config.Network.Endpoints

	if len(endpoints.Gateway) > 0 {
		if len(ctx.State.PrivateRouteTables) == 0 {
			ctx.Observer.Printf("[%s] No private route tables, skipping gateway endpoints %v", phase, endpoints.Gateway)
		} else {
			tables := make([]any, 0, len(ctx.State.PrivateRouteTables))
			for _, id := range ctx.State.PrivateRouteTables {
				tables = append(tables, topology.Ref(id))
			}
			for _, class := range endpoints.Gateway {
				err := ctx.Declare(phase, topology.Resource{
					LogicalID: EndpointID(class),
					Type:      "AWS::EC2::VPCEndpoint",
					Component: topology.ComponentEgress,
					Properties: map[string]any{
						"ServiceName":     ServiceName(class),
						"VpcEndpointType": "Gateway",
						"VpcId":           topology.Ref(VPCID),
						"RouteTableIds":   tables,
					},
				})
				if err != nil {
					return err
				}
				ctx.State.Endpoints = append(ctx.State.Endpoints, EndpointID(class))
			}
		}
	}

	if len(endpoints.Interface) == 0 {
		return nil
	}

	tier := endpointTier(ctx.Config)
	subnetIDs := ctx.State.Subnets[tier]
	if len(subnetIDs) == 0 {
		return fmt.Errorf("interface endpoints need a private subnet, tier %q has none", tier)
	}
	subnets := make([]any, 0, len(subnetIDs))
	for _, id := range subnetIDs {
		subnets = append(subnets, topology.Ref(id))
	}

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: EndpointSecurityGroupID,
		Type:      "AWS::EC2::SecurityGroup",
		Component: topology.ComponentEgress,
		Properties: map[string]any{
			"GroupDescription": fmt.Sprintf("%s interface endpoints", ctx.Config.StackName),
			"VpcId":            topology.Ref(VPCID),
			"SecurityGroupIngress": []any{
				map[string]any{
					"IpProtocol":  "tcp",
					"FromPort":    httpsPort,
					"ToPort":      httpsPort,
					"CidrIp":      ctx.Layout.CIDR,
					"Description": "HTTPS from the VPC",
				},
			},
			"Tags": ctx.Tags(topology.ComponentEgress).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.EndpointSecurityGroup = EndpointSecurityGroupID

	for _, class := range endpoints.Interface {
		err := ctx.Declare(phase, topology.Resource{
			LogicalID: EndpointID(class),
			Type:      "AWS::EC2::VPCEndpoint",
			Component: topology.ComponentEgress,
			Properties: map[string]any{
				"ServiceName":       ServiceName(class),
				"VpcEndpointType":   "Interface",
				"VpcId":             topology.Ref(VPCID),
				"PrivateDnsEnabled": true,
				"SubnetIds":         subnets,
				"SecurityGroupIds":  []any{topology.GetAtt(EndpointSecurityGroupID, "GroupId")},
			},
		})
		if err != nil {
			return err
		}
		ctx.State.Endpoints = append(ctx.State.Endpoints, EndpointID(class))
	}
	return nil
}

// endpointTier places interface endpoints next to the fleet when possible.
// Otherwise they go in the first private tier.
func endpointTier(cfg *config.Config) string {
	if cfg.Fleet.Tier != "" {
		return cfg.Fleet.Tier
	}
	if t := cfg.Network.FirstTierOfType(config.SubnetPrivateEgress); t != "" {
		return t
	}
	return cfg.Network.FirstTierOfType(config.SubnetPrivateIsolated)
}
