package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type fakeSTS struct{ account string }

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

type fakeSSM struct {
	values map[string]string
	err    error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParameterOutput{}
	if v, ok := f.values[aws.ToString(in.Name)]; ok {
		out.Parameter = &ssmtypes.Parameter{Value: aws.String(v)}
	}
	return out, nil
}

type fakeEC2 struct {
	zones     ec2.DescribeAvailabilityZonesOutput
	endpoints []ec2.DescribeVpcEndpointsOutput
	calls     int
	lastVPC   []string
}

func (f *fakeEC2) DescribeAvailabilityZones(context.Context, *ec2.DescribeAvailabilityZonesInput, ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	return &f.zones, nil
}

func (f *fakeEC2) DescribeVpcEndpoints(_ context.Context, in *ec2.DescribeVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	page := f.endpoints[f.calls]
	f.calls++
	for _, filter := range in.Filters {
		if aws.ToString(filter.Name) == "vpc-id" {
			f.lastVPC = filter.Values
		}
	}
	return &page, nil
}

type fakeIAM struct {
	out iam.GetOpenIDConnectProviderOutput
	arn string
}

func (f *fakeIAM) GetOpenIDConnectProvider(_ context.Context, in *iam.GetOpenIDConnectProviderInput, _ ...func(*iam.Options)) (*iam.GetOpenIDConnectProviderOutput, error) {
	f.arn = aws.ToString(in.OpenIDConnectProviderArn)
	return &f.out, nil
}

type fakeKMS struct {
	describe kms.DescribeKeyOutput
	rotation bool
}

func (f *fakeKMS) DescribeKey(context.Context, *kms.DescribeKeyInput, ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	return &f.describe, nil
}

func (f *fakeKMS) GetKeyRotationStatus(context.Context, *kms.GetKeyRotationStatusInput, ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error) {
	return &kms.GetKeyRotationStatusOutput{KeyRotationEnabled: f.rotation}, nil
}

type fakeCodeDeploy struct {
	registered *codedeploy.RegisterApplicationRevisionInput
	created    *codedeploy.CreateDeploymentInput
	statuses   []codedeploy.GetDeploymentOutput
	polls      int
}

func (f *fakeCodeDeploy) RegisterApplicationRevision(_ context.Context, in *codedeploy.RegisterApplicationRevisionInput, _ ...func(*codedeploy.Options)) (*codedeploy.RegisterApplicationRevisionOutput, error) {
	f.registered = in
	return &codedeploy.RegisterApplicationRevisionOutput{}, nil
}

func (f *fakeCodeDeploy) CreateDeployment(_ context.Context, in *codedeploy.CreateDeploymentInput, _ ...func(*codedeploy.Options)) (*codedeploy.CreateDeploymentOutput, error) {
	f.created = in
	return &codedeploy.CreateDeploymentOutput{DeploymentId: aws.String("d-ABC123")}, nil
}

func (f *fakeCodeDeploy) GetDeployment(context.Context, *codedeploy.GetDeploymentInput, ...func(*codedeploy.Options)) (*codedeploy.GetDeploymentOutput, error) {
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	return &f.statuses[i], nil
}
