package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountID(t *testing.T) {
	t.Parallel()

	c := New("eu-west-1", APIs{STS: &fakeSTS{account: "123456789012"}}, WithTimeouts(fastTimeouts()))
	account, err := c.AccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)
}

func TestResolveImage(t *testing.T) {
	t.Parallel()

	const param = "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64"
	tests := []struct {
		name    string
		ssm     *fakeSSM
		want    string
		wantErr string
	}{
		{
			name: "resolved",
			ssm:  &fakeSSM{values: map[string]string{param: "ami-0123456789abcdef0"}},
			want: "ami-0123456789abcdef0",
		},
		{
			name:    "empty value",
			ssm:     &fakeSSM{},
			wantErr: "has no value",
		},
		{
			name:    "parameter missing",
			ssm:     &fakeSSM{err: apiError("ParameterNotFound", smithy.FaultClient)},
			wantErr: "failed to resolve image parameter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New("eu-west-1", APIs{SSM: tt.ssm}, WithTimeouts(fastTimeouts()))
			got, err := c.ResolveImage(context.Background(), param)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailabilityZones_Sorted(t *testing.T) {
	t.Parallel()

	fake := &fakeEC2{zones: ec2.DescribeAvailabilityZonesOutput{
		AvailabilityZones: []ec2types.AvailabilityZone{
			{ZoneName: aws.String("eu-west-1c")},
			{ZoneName: aws.String("eu-west-1a")},
			{ZoneName: aws.String("eu-west-1b")},
		},
	}}
	c := New("eu-west-1", APIs{EC2: fake}, WithTimeouts(fastTimeouts()))

	zones, err := c.AvailabilityZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-west-1a", "eu-west-1b", "eu-west-1c"}, zones)
}

func TestVPCEndpoints_Paginates(t *testing.T) {
	t.Parallel()

	fake := &fakeEC2{endpoints: []ec2.DescribeVpcEndpointsOutput{
		{
			VpcEndpoints: []ec2types.VpcEndpoint{{
				VpcEndpointId:     aws.String("vpce-2"),
				ServiceName:       aws.String("com.amazonaws.eu-west-1.ssm"),
				VpcEndpointType:   ec2types.VpcEndpointTypeInterface,
				PrivateDnsEnabled: aws.Bool(true),
				State:             ec2types.State("available"),
			}},
			NextToken: aws.String("page-2"),
		},
		{
			VpcEndpoints: []ec2types.VpcEndpoint{{
				VpcEndpointId:   aws.String("vpce-1"),
				ServiceName:     aws.String("com.amazonaws.eu-west-1.s3"),
				VpcEndpointType: ec2types.VpcEndpointTypeGateway,
				State:           ec2types.State("available"),
			}},
		},
	}}
	c := New("eu-west-1", APIs{EC2: fake}, WithTimeouts(fastTimeouts()))

	endpoints, err := c.VPCEndpoints(context.Background(), "vpc-1234")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, []string{"vpc-1234"}, fake.lastVPC)
	assert.Equal(t, []Endpoint{
		{ID: "vpce-1", Service: "com.amazonaws.eu-west-1.s3", Type: "Gateway", State: "available"},
		{ID: "vpce-2", Service: "com.amazonaws.eu-west-1.ssm", Type: "Interface", State: "available", PrivateDNS: true},
	}, endpoints)
}

func TestOIDCProvider(t *testing.T) {
	t.Parallel()

	const arn = "arn:aws:iam::123456789012:oidc-provider/token.actions.githubusercontent.com"
	fake := &fakeIAM{out: iam.GetOpenIDConnectProviderOutput{
		Url:            aws.String("token.actions.githubusercontent.com"),
		ClientIDList:   []string{"sts.amazonaws.com"},
		ThumbprintList: []string{"6938fd4d98bab03faadb97b34396831e3780aea1"},
	}}
	c := New("eu-west-1", APIs{IAM: fake}, WithTimeouts(fastTimeouts()))

	p, err := c.OIDCProvider(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, arn, fake.arn)
	assert.Equal(t, "token.actions.githubusercontent.com", p.URL)
	assert.Equal(t, []string{"sts.amazonaws.com"}, p.Audiences)
	assert.Equal(t, []string{"6938fd4d98bab03faadb97b34396831e3780aea1"}, p.Thumbprints)
}

func TestKeyForAlias(t *testing.T) {
	t.Parallel()

	fake := &fakeKMS{
		describe: kms.DescribeKeyOutput{KeyMetadata: &kmstypes.KeyMetadata{
			KeyId:    aws.String("abcd"),
			Arn:      aws.String("arn:aws:kms:eu-west-1:123456789012:key/abcd"),
			Enabled:  true,
			KeyState: kmstypes.KeyStateEnabled,
		}},
		rotation: true,
	}
	c := New("eu-west-1", APIs{KMS: fake}, WithTimeouts(fastTimeouts()))

	key, err := c.KeyForAlias(context.Background(), "alias/web-releases")
	require.NoError(t, err)
	assert.Equal(t, &Key{
		ID:       "abcd",
		ARN:      "arn:aws:kms:eu-west-1:123456789012:key/abcd",
		Enabled:  true,
		Rotation: true,
	}, key)
}

func TestStartDeployment(t *testing.T) {
	t.Parallel()

	fake := &fakeCodeDeploy{}
	c := New("eu-west-1", APIs{CodeDeploy: fake}, WithTimeouts(fastTimeouts()))

	id, err := c.StartDeployment(context.Background(), DeploymentRequest{
		Application:     "web-app",
		DeploymentGroup: "web-fleet",
		Revision:        Revision{Bucket: "web-releases", Key: "app-1.zip", Version: "v1"},
		Description:     "release app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "d-ABC123", id)

	require.NotNil(t, fake.registered)
	assert.Equal(t, "web-app", aws.ToString(fake.registered.ApplicationName))
	loc := fake.registered.Revision
	assert.Equal(t, cdtypes.RevisionLocationTypeS3, loc.RevisionType)
	assert.Equal(t, "web-releases", aws.ToString(loc.S3Location.Bucket))
	assert.Equal(t, "app-1.zip", aws.ToString(loc.S3Location.Key))
	assert.Equal(t, "v1", aws.ToString(loc.S3Location.Version))
	assert.Nil(t, loc.S3Location.ETag)
	assert.Equal(t, cdtypes.BundleTypeZip, loc.S3Location.BundleType)

	require.NotNil(t, fake.created)
	assert.Equal(t, "web-fleet", aws.ToString(fake.created.DeploymentGroupName))
	assert.Nil(t, fake.created.DeploymentConfigName, "group configuration is used unless overridden")
}

func deploymentOutput(status cdtypes.DeploymentStatus, succeeded, failed int64) codedeploy.GetDeploymentOutput {
	return codedeploy.GetDeploymentOutput{DeploymentInfo: &cdtypes.DeploymentInfo{
		Status:             status,
		DeploymentOverview: &cdtypes.DeploymentOverview{Succeeded: succeeded, Failed: failed},
	}}
}

func TestWaitForDeployment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []codedeploy.GetDeploymentOutput
		wantErr  bool
		want     string
	}{
		{
			name: "succeeds after polling",
			statuses: []codedeploy.GetDeploymentOutput{
				deploymentOutput(cdtypes.DeploymentStatusCreated, 0, 0),
				deploymentOutput(cdtypes.DeploymentStatusInProgress, 1, 0),
				deploymentOutput(cdtypes.DeploymentStatusSucceeded, 2, 0),
			},
			want: "Succeeded",
		},
		{
			name: "fails",
			statuses: []codedeploy.GetDeploymentOutput{
				deploymentOutput(cdtypes.DeploymentStatusInProgress, 1, 0),
				deploymentOutput(cdtypes.DeploymentStatusFailed, 1, 1),
			},
			wantErr: true,
			want:    "Failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := clockwork.NewFakeClock()
			fake := &fakeCodeDeploy{statuses: tt.statuses}
			c := New("eu-west-1", APIs{CodeDeploy: fake}, WithTimeouts(fastTimeouts()), WithClock(clock))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			go func() {
				for ctx.Err() == nil {
					if err := clock.BlockUntilContext(ctx, 1); err != nil {
						return
					}
					clock.Advance(5 * time.Second)
				}
			}()

			status, err := c.WaitForDeployment(ctx, "d-ABC123", 5*time.Second)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrDeploymentFailed))
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, status)
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, len(tt.statuses), fake.polls)
		})
	}
}
