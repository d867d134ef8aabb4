package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/metrics"
	"github.com/joel-cunningham/cdk-example/internal/util/retry"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetBucketEncryption(ctx context.Context, in *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetPublicAccessBlock(ctx context.Context, in *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketPolicy(ctx context.Context, in *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeAvailabilityZones(ctx context.Context, in *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
	DescribeVpcEndpoints(ctx context.Context, in *ec2.DescribeVpcEndpointsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error)
}

// IAMAPI is the subset of the IAM client used here.
type IAMAPI interface {
	GetOpenIDConnectProvider(ctx context.Context, in *iam.GetOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.GetOpenIDConnectProviderOutput, error)
}

// KMSAPI is the subset of the KMS client used here.
type KMSAPI interface {
	DescribeKey(ctx context.Context, in *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetKeyRotationStatus(ctx context.Context, in *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error)
}

// CodeDeployAPI is the subset of the CodeDeploy client used here.
type CodeDeployAPI interface {
	RegisterApplicationRevision(ctx context.Context, in *codedeploy.RegisterApplicationRevisionInput, optFns ...func(*codedeploy.Options)) (*codedeploy.RegisterApplicationRevisionOutput, error)
	CreateDeployment(ctx context.Context, in *codedeploy.CreateDeploymentInput, optFns ...func(*codedeploy.Options)) (*codedeploy.CreateDeploymentOutput, error)
	GetDeployment(ctx context.Context, in *codedeploy.GetDeploymentInput, optFns ...func(*codedeploy.Options)) (*codedeploy.GetDeploymentOutput, error)
}

// APIs bundles the service clients. Nil members are only an error when an
// operation needs them.
type APIs struct {
	S3         S3API
	STS        STSAPI
	SSM        SSMAPI
	EC2        EC2API
	IAM        IAMAPI
	KMS        KMSAPI
	CodeDeploy CodeDeployAPI
}

// Client runs AWS API calls for one region.
type Client struct {
	apis     APIs
	region   string
	timeouts *config.Timeouts
	clock    clockwork.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the clock used for retries and deployment polling.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithTimeouts replaces the timeouts loaded from the environment.
func WithTimeouts(t *config.Timeouts) Option {
	return func(c *Client) {
		c.timeouts = t
	}
}

// Credentials holds static credentials. When empty the default chain
// (environment, shared config, instance role) is used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewClient creates a client from the default AWS configuration chain.
func NewClient(ctx context.Context, region string, creds Credentials, opts ...Option) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if creds.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(region, FromConfig(cfg), opts...), nil
}

// FromConfig creates every service client from one SDK configuration.
func FromConfig(cfg aws.Config) APIs {
	return APIs{
		S3:         s3.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
		SSM:        ssm.NewFromConfig(cfg),
		EC2:        ec2.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		KMS:        kms.NewFromConfig(cfg),
		CodeDeploy: codedeploy.NewFromConfig(cfg),
	}
}

// New creates a client over existing service clients.
func New(region string, apis APIs, opts ...Option) *Client {
	c := &Client{
		apis:     apis,
		region:   region,
		timeouts: config.LoadTimeouts(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Region returns the region the client talks to.
func (c *Client) Region() string {
	return c.region
}

// call runs fn with a per-attempt timeout, retrying transient failures.
func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := c.clock.Now()
	err := retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeouts.AWSCall)
		defer cancel()
		return fn(callCtx)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithRetryable(Retryable),
		retry.WithClock(c.clock),
	)
	metrics.RecordAWSCall(operation, err, c.clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
