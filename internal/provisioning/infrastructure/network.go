package infrastructure

import (
	"fmt"
	"strconv"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Logical IDs of the network resources that exist once per stack.
const (
	VPCID               = "Vpc"
	InternetGatewayID   = "InternetGateway"
	GatewayAttachmentID = "VpcGatewayAttachment"
)

// AnyIPv4 is the default route destination.
const AnyIPv4 = "0.0.0.0/0"

// ProvisionNetwork declares the VPC, a subnet and route table for every
// non-reserved (tier, AZ) block, the internet gateway and the NAT gateways,
// then the default route of every subnet.
func ProvisionNetwork(ctx *provisioning.Context) error {
	layout := ctx.Layout
	ctx.Observer.Printf("[%s] Declaring network %s across %d availability zones...", phase, layout.CIDR, len(layout.AZs))

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: VPCID,
		Type:      "AWS::EC2::VPC",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"CidrBlock":          layout.CIDR,
			"EnableDnsHostnames": true,
			"EnableDnsSupport":   true,
			"Tags":               ctx.Tags(topology.ComponentNetwork).WithName(ctx.Config.StackName).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.VPC = VPCID

	if len(layout.SubnetsByType(config.SubnetPublic)) > 0 {
		if err := declareInternetGateway(ctx); err != nil {
			return err
		}
	}

	for _, s := range layout.Subnets {
		if s.Reserved {
			continue
		}
		if err := declareSubnet(ctx, s); err != nil {
			return err
		}
	}

	if ctx.Config.Network.HasTierType(config.SubnetPrivateEgress) {
		if err := declareNATGateways(ctx); err != nil {
			return err
		}
	}

	for _, s := range layout.Subnets {
		if s.Reserved || s.Type == config.SubnetPrivateIsolated {
			continue
		}
		if err := declareDefaultRoute(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func declareInternetGateway(ctx *provisioning.Context) error {
	err := ctx.Declare(phase, topology.Resource{
		LogicalID: InternetGatewayID,
		Type:      "AWS::EC2::InternetGateway",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"Tags": ctx.Tags(topology.ComponentNetwork).WithName(ctx.Config.StackName).Build(),
		},
	})
	if err != nil {
		return err
	}
	err = ctx.Declare(phase, topology.Resource{
		LogicalID: GatewayAttachmentID,
		Type:      "AWS::EC2::VPCGatewayAttachment",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"VpcId":             topology.Ref(VPCID),
			"InternetGatewayId": topology.Ref(InternetGatewayID),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.InternetGateway = InternetGatewayID
	ctx.State.GatewayAttachment = GatewayAttachmentID
	return nil
}

// SubnetID returns the logical ID of the subnet of a tier in an AZ.
func SubnetID(tier string, azIndex int) string {
	return naming.LogicalID(tier, "subnet", strconv.Itoa(azIndex+1))
}

// RouteTableID returns the logical ID of a subnet's route table.
func RouteTableID(tier string, azIndex int) string {
	return naming.LogicalID(tier, "route", "table", strconv.Itoa(azIndex+1))
}

// DefaultRouteID returns the logical ID of a subnet's 0.0.0.0/0 route.
func DefaultRouteID(tier string, azIndex int) string {
	return naming.LogicalID(tier, "default", "route", strconv.Itoa(azIndex+1))
}

// NATGatewayID returns the logical ID of the i-th NAT gateway.
func NATGatewayID(i int) string {
	return naming.LogicalID("nat", "gateway", strconv.Itoa(i+1))
}

func declareSubnet(ctx *provisioning.Context, s config.Subnet) error {
	subnetID := SubnetID(s.Tier, s.AZIndex)
	tableID := RouteTableID(s.Tier, s.AZIndex)
	name := fmt.Sprintf("%s-%s-%s", ctx.Config.StackName, s.Tier, s.AZ)

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: subnetID,
		Type:      "AWS::EC2::Subnet",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"VpcId":               topology.Ref(VPCID),
			"CidrBlock":           s.CIDR,
			"AvailabilityZone":    s.AZ,
			"MapPublicIpOnLaunch": s.Type == config.SubnetPublic,
			"Tags":                ctx.Tags(topology.ComponentNetwork).WithTier(s.Tier).WithName(name).Build(),
		},
	})
	if err != nil {
		return err
	}

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: tableID,
		Type:      "AWS::EC2::RouteTable",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"VpcId": topology.Ref(VPCID),
			"Tags":  ctx.Tags(topology.ComponentNetwork).WithTier(s.Tier).WithName(name).Build(),
		},
	})
	if err != nil {
		return err
	}

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: naming.LogicalID(s.Tier, "route", "table", "association", strconv.Itoa(s.AZIndex+1)),
		Type:      "AWS::EC2::SubnetRouteTableAssociation",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"SubnetId":     topology.Ref(subnetID),
			"RouteTableId": topology.Ref(tableID),
		},
	})
	if err != nil {
		return err
	}

	ctx.State.Subnets[s.Tier] = append(ctx.State.Subnets[s.Tier], subnetID)
	ctx.State.RouteTables[s.Tier] = append(ctx.State.RouteTables[s.Tier], tableID)
	if s.Type != config.SubnetPublic {
		ctx.State.PrivateRouteTables = append(ctx.State.PrivateRouteTables, tableID)
	}
	return nil
}

// declareNATGateways places NAT gateway i in the first public tier's subnet
// of AZ i. Egress subnets of later AZs share gateways round-robin.
func declareNATGateways(ctx *provisioning.Context) error {
	publicTier := ctx.Config.Network.FirstTierOfType(config.SubnetPublic)
	hosts := ctx.Layout.SubnetsByTier(publicTier)
	if len(hosts) < ctx.Layout.NATs {
		return fmt.Errorf("%d NAT gateways need a public subnet in as many availability zones, found %d", ctx.Layout.NATs, len(hosts))
	}

	for i := 0; i < ctx.Layout.NATs; i++ {
		eipID := naming.LogicalID("nat", "eip", strconv.Itoa(i+1))
		natID := NATGatewayID(i)
		name := fmt.Sprintf("%s-nat-%s", ctx.Config.StackName, hosts[i].AZ)

		err := ctx.Declare(phase, topology.Resource{
			LogicalID: eipID,
			Type:      "AWS::EC2::EIP",
			Component: topology.ComponentNetwork,
			Properties: map[string]any{
				"Domain": "vpc",
				"Tags":   ctx.Tags(topology.ComponentNetwork).WithName(name).Build(),
			},
			DependsOn: []string{GatewayAttachmentID},
		})
		if err != nil {
			return err
		}

		err = ctx.Declare(phase, topology.Resource{
			LogicalID: natID,
			Type:      "AWS::EC2::NatGateway",
			Component: topology.ComponentNetwork,
			Properties: map[string]any{
				"SubnetId":     topology.Ref(SubnetID(publicTier, hosts[i].AZIndex)),
				"AllocationId": topology.GetAtt(eipID, "AllocationId"),
				"Tags":         ctx.Tags(topology.ComponentNetwork).WithName(name).Build(),
			},
		})
		if err != nil {
			return err
		}
		ctx.State.NATGateways = append(ctx.State.NATGateways, natID)
	}
	return nil
}

func declareDefaultRoute(ctx *provisioning.Context, s config.Subnet) error {
	route := topology.Resource{
		LogicalID: DefaultRouteID(s.Tier, s.AZIndex),
		Type:      "AWS::EC2::Route",
		Component: topology.ComponentNetwork,
		Properties: map[string]any{
			"RouteTableId":         topology.Ref(RouteTableID(s.Tier, s.AZIndex)),
			"DestinationCidrBlock": AnyIPv4,
		},
	}

	switch s.Type {
	case config.SubnetPublic:
		route.Properties["GatewayId"] = topology.Ref(InternetGatewayID)
		route.DependsOn = []string{GatewayAttachmentID}
	case config.SubnetPrivateEgress:
		nat := ctx.Layout.NATIndex(s.AZIndex)
		if nat < 0 || nat >= len(ctx.State.NATGateways) {
			return fmt.Errorf("subnet %s in %s has no NAT gateway", s.Tier, s.AZ)
		}
		route.Properties["NatGatewayId"] = topology.Ref(ctx.State.NATGateways[nat])
	default:
		return fmt.Errorf("tier %s of type %s has no default route", s.Tier, s.Type)
	}

	if err := ctx.Declare(phase, route); err != nil {
		return err
	}
	ctx.State.DefaultRoutes[s.Tier] = append(ctx.State.DefaultRoutes[s.Tier], route.LogicalID)
	return nil
}
