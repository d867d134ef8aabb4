package orchestration

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/apparentlymart/go-cidr/cidr"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/infrastructure"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// ErrInvariant is returned when a synthesized graph breaks a topology
// invariant.
var ErrInvariant = errors.New("topology invariant violated")

// staticCredentialTypes may never appear in a synthesized stack.
var staticCredentialTypes = []string{"AWS::IAM::User", "AWS::IAM::AccessKey"}

type check struct {
	name string
	fn   func(*provisioning.Context, *topology.Graph) error
}

var checks = []check{
	{"subnets", checkSubnets},
	{"routes", checkRoutes},
	{"fleet", checkFleet},
	{"router", checkRouter},
	{"trust", checkTrust},
	{"store", checkStore},
}

// CheckInvariants verifies the built graph and returns the first violation.
func CheckInvariants(ctx *provisioning.Context, g *topology.Graph) error {
	for _, c := range checks {
		if err := c.fn(ctx, g); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvariant, c.name, err)
		}
	}
	return nil
}

func properties(g *topology.Graph, id string) (map[string]any, error) {
	r, ok := g.Resource(id)
	if !ok {
		return nil, fmt.Errorf("%s not declared", id)
	}
	return r.Properties, nil
}

// checkSubnets verifies every subnet lies inside the network and no two
// subnets overlap.
func checkSubnets(ctx *provisioning.Context, g *topology.Graph) error {
	_, network, err := net.ParseCIDR(ctx.Config.Network.CIDR)
	if err != nil {
		return err
	}
	var blocks []*net.IPNet
	for _, r := range g.ResourcesOfType("AWS::EC2::Subnet") {
		block, _ := r.Properties["CidrBlock"].(string)
		_, n, err := net.ParseCIDR(block)
		if err != nil {
			return fmt.Errorf("%s: %w", r.LogicalID, err)
		}
		blocks = append(blocks, n)
	}
	return cidr.VerifyNoOverlap(blocks, network)
}

// checkRoutes verifies the egress paths: isolated tiers have no default
// route, every egress route table has exactly one route through a NAT.
func checkRoutes(ctx *provisioning.Context, g *topology.Graph) error {
	routesByTable := make(map[string][]map[string]any)
	for _, r := range g.ResourcesOfType("AWS::EC2::Route") {
		table, ok := r.Properties["RouteTableId"].(topology.Reference)
		if !ok {
			return fmt.Errorf("%s has no route table reference", r.LogicalID)
		}
		routesByTable[table.LogicalID] = append(routesByTable[table.LogicalID], r.Properties)
	}

	for _, tier := range ctx.Config.Network.Tiers {
		for _, table := range ctx.State.RouteTables[tier.Name] {
			routes := routesByTable[table]
			switch tier.Type {
			case config.SubnetPrivateIsolated:
				if len(routes) != 0 {
					return fmt.Errorf("isolated route table %s has a route", table)
				}
			case config.SubnetPrivateEgress:
				if len(routes) != 1 || routes[0]["NatGatewayId"] == nil {
					return fmt.Errorf("route table %s needs exactly one NAT route", table)
				}
			case config.SubnetPublic:
				if len(routes) != 1 || routes[0]["GatewayId"] == nil {
					return fmt.Errorf("public route table %s needs an internet route", table)
				}
			}
		}
	}
	return nil
}

// checkFleet verifies the fleet keeps at least one member and lives only in
// its own tier.
func checkFleet(ctx *provisioning.Context, g *topology.Graph) error {
	asg, err := properties(g, ctx.State.AutoScalingGroup)
	if err != nil {
		return err
	}
	minSize, err := strconv.Atoi(fmt.Sprint(asg["MinSize"]))
	if err != nil || minSize < 1 {
		return fmt.Errorf("minimum capacity must be at least 1")
	}

	allowed := make(map[string]bool)
	for _, id := range ctx.State.Subnets[ctx.Config.Fleet.Tier] {
		allowed[id] = true
	}
	for _, id := range topology.CollectReferences(asg["VPCZoneIdentifier"]) {
		if !allowed[id] {
			return fmt.Errorf("fleet placed in subnet %s outside tier %s", id, ctx.Config.Fleet.Tier)
		}
	}
	return nil
}

// checkRouter verifies the load balancer is internet-facing and its listener
// is open to every source.
func checkRouter(ctx *provisioning.Context, g *topology.Graph) error {
	lb, err := properties(g, ctx.State.LoadBalancer)
	if err != nil {
		return err
	}
	if lb["Scheme"] != "internet-facing" {
		return fmt.Errorf("load balancer is not internet-facing")
	}

	sg, err := properties(g, ctx.State.LoadBalancerSecurityGroup)
	if err != nil {
		return err
	}
	rules, _ := sg["SecurityGroupIngress"].([]any)
	for _, rule := range rules {
		m, ok := rule.(map[string]any)
		if ok && m["CidrIp"] == infrastructure.AnyIPv4 && m["FromPort"] == ctx.Config.Router.ListenerPort {
			return nil
		}
	}
	return fmt.Errorf("listener port %d is not open to all sources", ctx.Config.Router.ListenerPort)
}

// checkTrust verifies the deploy role requires both audience and subject,
// is distinct from the execution role, and that no static credential exists.
func checkTrust(ctx *provisioning.Context, g *topology.Graph) error {
	for _, typ := range staticCredentialTypes {
		if n := len(g.ResourcesOfType(typ)); n > 0 {
			return fmt.Errorf("stack declares %d %s", n, typ)
		}
	}
	if ctx.State.DeployRole == ctx.State.ServiceRole {
		return fmt.Errorf("deploy role and service role are the same resource")
	}

	role, err := properties(g, ctx.State.DeployRole)
	if err != nil {
		return err
	}
	doc, ok := role["AssumeRolePolicyDocument"].(policy.Document)
	if !ok {
		return fmt.Errorf("deploy role has no trust policy")
	}
	for _, s := range doc.Statement {
		if s.Effect != policy.Allow {
			continue
		}
		if len(s.Condition["StringEquals"]) == 0 || len(s.Condition["StringLike"]) == 0 {
			return fmt.Errorf("trust statement %q does not pin audience and subject", s.Sid)
		}
	}
	return nil
}

// checkStore verifies the bucket is encrypted, blocks public access and
// denies plain HTTP.
func checkStore(ctx *provisioning.Context, g *topology.Graph) error {
	bucket, err := properties(g, ctx.State.Bucket)
	if err != nil {
		return err
	}
	if _, ok := bucket["BucketEncryption"]; !ok {
		return fmt.Errorf("bucket has no default encryption")
	}
	block, _ := bucket["PublicAccessBlockConfiguration"].(map[string]any)
	for _, flag := range []string{"BlockPublicAcls", "IgnorePublicAcls", "BlockPublicPolicy", "RestrictPublicBuckets"} {
		if block[flag] != true {
			return fmt.Errorf("bucket does not set %s", flag)
		}
	}

	bp, err := properties(g, ctx.State.BucketPolicy)
	if err != nil {
		return err
	}
	doc, _ := bp["PolicyDocument"].(policy.Document)
	for _, s := range doc.Statement {
		if s.Effect == policy.Deny && len(s.Condition["Bool"][artifacts.SecureTransportKey]) > 0 {
			return nil
		}
	}
	return fmt.Errorf("bucket policy does not deny insecure transport")
}
