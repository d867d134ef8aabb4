package infrastructure

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Logical IDs of the traffic router.
const (
	LoadBalancerID              = "LoadBalancer"
	LoadBalancerSecurityGroupID = "LoadBalancerSecurityGroup"
	TargetGroupID               = "TargetGroup"
	ListenerID                  = "Listener"

	// LoadBalancerDNSOutput is the stack output carrying the public DNS name.
	LoadBalancerDNSOutput = "LoadBalancerDNS"
)

// DeregistrationDelayAttribute is the target group attribute bounding how
// long a deregistering target keeps its in-flight requests.
const DeregistrationDelayAttribute = "deregistration_delay.timeout_seconds"

// healthyStatusCodes matches the router's health checker: any 2xx passes.
const healthyStatusCodes = "200-299"

// ProvisionLoadBalancer declares the internet-facing load balancer in the
// public tier, a listener open to every source, and the target group with
// explicit health-check parameters and deregistration delay.
func ProvisionLoadBalancer(ctx *provisioning.Context) error {
	cfg := ctx.Config
	r := cfg.Router
	lbName := naming.LoadBalancer(cfg.StackName)
	ctx.Observer.Printf("[%s] Declaring load balancer %s on port %d...", phase, lbName, r.ListenerPort)

	subnetIDs := ctx.State.Subnets[r.Tier]
	if len(subnetIDs) < 2 {
		return fmt.Errorf("load balancer needs subnets in at least 2 availability zones, tier %q has %d", r.Tier, len(subnetIDs))
	}
	subnets := make([]any, 0, len(subnetIDs))
	for _, id := range subnetIDs {
		subnets = append(subnets, topology.Ref(id))
	}

	// Security group: listener port from anywhere
	err := ctx.Declare(phase, topology.Resource{
		LogicalID: LoadBalancerSecurityGroupID,
		Type:      "AWS::EC2::SecurityGroup",
		Component: topology.ComponentRouter,
		Properties: map[string]any{
			"GroupDescription": fmt.Sprintf("%s load balancer", cfg.StackName),
			"VpcId":            topology.Ref(VPCID),
			"SecurityGroupIngress": []any{
				map[string]any{
					"IpProtocol":  "tcp",
					"FromPort":    r.ListenerPort,
					"ToPort":      r.ListenerPort,
					"CidrIp":      AnyIPv4,
					"Description": fmt.Sprintf("Allow from anyone on port %d", r.ListenerPort),
				},
			},
			"Tags": ctx.Tags(topology.ComponentRouter).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.LoadBalancerSecurityGroup = LoadBalancerSecurityGroupID

	// The load balancer only answers once the public tier can reach the internet.
	err = ctx.Declare(phase, topology.Resource{
		LogicalID: LoadBalancerID,
		Type:      "AWS::ElasticLoadBalancingV2::LoadBalancer",
		Component: topology.ComponentRouter,
		Properties: map[string]any{
			"Name":           lbName,
			"Type":           "application",
			"Scheme":         "internet-facing",
			"IpAddressType":  "ipv4",
			"Subnets":        subnets,
			"SecurityGroups": []any{topology.GetAtt(LoadBalancerSecurityGroupID, "GroupId")},
			"Tags":           ctx.Tags(topology.ComponentRouter).WithName(lbName).Build(),
		},
		DependsOn: append([]string(nil), ctx.State.DefaultRoutes[r.Tier]...),
	})
	if err != nil {
		return err
	}
	ctx.State.LoadBalancer = LoadBalancerID

	hc := r.HealthCheck
	err = ctx.Declare(phase, topology.Resource{
		LogicalID: TargetGroupID,
		Type:      "AWS::ElasticLoadBalancingV2::TargetGroup",
		Component: topology.ComponentRouter,
		Properties: map[string]any{
			"Name":                       naming.TargetGroup(cfg.StackName),
			"Port":                       r.TargetPort,
			"Protocol":                   "HTTP",
			"TargetType":                 "instance",
			"VpcId":                      topology.Ref(VPCID),
			"HealthCheckEnabled":         true,
			"HealthCheckProtocol":        "HTTP",
			"HealthCheckPath":            hc.Path,
			"HealthCheckIntervalSeconds": seconds(hc.Interval),
			"HealthCheckTimeoutSeconds":  seconds(hc.Timeout),
			"HealthyThresholdCount":      hc.HealthyThreshold,
			"UnhealthyThresholdCount":    hc.UnhealthyThreshold,
			"Matcher":                    map[string]any{"HttpCode": healthyStatusCodes},
			"TargetGroupAttributes": []any{
				map[string]any{
					"Key":   DeregistrationDelayAttribute,
					"Value": strconv.Itoa(seconds(r.DeregistrationDelay)),
				},
			},
			"Tags": ctx.Tags(topology.ComponentRouter).Build(),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.TargetGroup = TargetGroupID

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: ListenerID,
		Type:      "AWS::ElasticLoadBalancingV2::Listener",
		Component: topology.ComponentRouter,
		Properties: map[string]any{
			"LoadBalancerArn": topology.Ref(LoadBalancerID),
			"Port":            r.ListenerPort,
			"Protocol":        "HTTP",
			"DefaultActions": []any{
				map[string]any{
					"Type":           "forward",
					"TargetGroupArn": topology.Ref(TargetGroupID),
				},
			},
		},
	})
	if err != nil {
		return err
	}
	ctx.State.Listener = ListenerID

	return ctx.Builder.AddOutput(LoadBalancerDNSOutput, topology.Output{
		Description: "Public DNS name of the load balancer",
		Value:       topology.GetAtt(LoadBalancerID, "DNSName"),
	})
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
