package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AccountID returns the account of the calling identity.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if c.apis.STS == nil {
		return "", fmt.Errorf("sts: %w", ErrNotConfigured)
	}
	var out *sts.GetCallerIdentityOutput
	err := c.call(ctx, "sts:GetCallerIdentity", func(ctx context.Context) error {
		var err error
		out, err = c.apis.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// ResolveImage reads a machine image ID from an SSM parameter.
func (c *Client) ResolveImage(ctx context.Context, parameter string) (string, error) {
	if c.apis.SSM == nil {
		return "", fmt.Errorf("ssm: %w", ErrNotConfigured)
	}
	var out *ssm.GetParameterOutput
	err := c.call(ctx, "ssm:GetParameter", func(ctx context.Context) error {
		var err error
		out, err = c.apis.SSM.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(parameter)})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve image parameter %s: %w", parameter, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("image parameter %s has no value", parameter)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// AvailabilityZones lists the available zones of the region, sorted.
func (c *Client) AvailabilityZones(ctx context.Context) ([]string, error) {
	if c.apis.EC2 == nil {
		return nil, fmt.Errorf("ec2: %w", ErrNotConfigured)
	}
	var out *ec2.DescribeAvailabilityZonesOutput
	err := c.call(ctx, "ec2:DescribeAvailabilityZones", func(ctx context.Context) error {
		var err error
		out, err = c.apis.EC2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("state"), Values: []string{"available"}},
				{Name: aws.String("zone-type"), Values: []string{"availability-zone"}},
			},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list availability zones: %w", err)
	}

	zones := make([]string, 0, len(out.AvailabilityZones))
	for _, az := range out.AvailabilityZones {
		if name := aws.ToString(az.ZoneName); name != "" {
			zones = append(zones, name)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

// Endpoint is a live VPC endpoint.
type Endpoint struct {
	ID         string
	Service    string
	Type       string
	State      string
	PrivateDNS bool
}

// VPCEndpoints lists every endpoint attached to a VPC, sorted by service.
func (c *Client) VPCEndpoints(ctx context.Context, vpcID string) ([]Endpoint, error) {
	if c.apis.EC2 == nil {
		return nil, fmt.Errorf("ec2: %w", ErrNotConfigured)
	}

	var endpoints []Endpoint
	var token *string
	for {
		var out *ec2.DescribeVpcEndpointsOutput
		err := c.call(ctx, "ec2:DescribeVpcEndpoints", func(ctx context.Context) error {
			var err error
			out, err = c.apis.EC2.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{
				Filters:   []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
				NextToken: token,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list endpoints of %s: %w", vpcID, err)
		}
		for _, ep := range out.VpcEndpoints {
			endpoints = append(endpoints, Endpoint{
				ID:         aws.ToString(ep.VpcEndpointId),
				Service:    aws.ToString(ep.ServiceName),
				Type:       string(ep.VpcEndpointType),
				State:      string(ep.State),
				PrivateDNS: aws.ToBool(ep.PrivateDnsEnabled),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		token = out.NextToken
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Service < endpoints[j].Service
	})
	return endpoints, nil
}
