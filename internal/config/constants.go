package config

import "time"

// Network defaults.
const (
	DefaultRegion  = "us-east-1"
	DefaultCIDR    = "10.0.0.0/16"
	DefaultMaxAZs  = 2
	MinSubnetMask  = 16
	MaxSubnetMask  = 28
	DefaultPublic  = "public"
	DefaultApp     = "application"
	DefaultData    = "data"
	DefaultAppMask = 24
)

// Fleet defaults.
const (
	DefaultInstanceType           = "t3.micro"
	DefaultImageParameter         = "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64"
	DefaultHealthCheckGracePeriod = 5 * time.Minute
)

// Router defaults.
const (
	DefaultListenerPort        = 80
	DefaultTargetPort          = 80
	DefaultHealthCheckPath     = "/"
	DefaultHealthCheckInterval = 10 * time.Second
	DefaultHealthCheckTimeout  = 5 * time.Second
	DefaultHealthyThreshold    = 5
	DefaultUnhealthyThreshold  = 2
	DefaultDeregistrationDelay = 10 * time.Second
)

// Trust defaults.
const (
	DefaultProviderURL        = "https://token.actions.githubusercontent.com"
	DefaultAudience           = "sts.amazonaws.com"
	DefaultMaxSessionDuration = time.Hour
)

// Pipeline defaults.
const (
	DefaultMinimumHealthyPercent = 50
)

// Endpoint traffic classes.
var (
	GatewayEndpointServices   = []string{"s3", "dynamodb"}
	InterfaceEndpointServices = []string{
		"ssm", "ssmmessages", "ec2messages", "ec2", "logs", "monitoring",
		"kms", "sts", "secretsmanager", "ecr.api", "ecr.dkr", "codedeploy",
		"codedeploy-commands-secure", "sqs", "sns", "elasticloadbalancing",
		"autoscaling",
	}
)

// DefaultTiers is the three-tier layout used when no tiers are declared.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: DefaultPublic, Type: SubnetPublic, CIDRMask: 24},
		{Name: DefaultApp, Type: SubnetPrivateEgress, CIDRMask: DefaultAppMask},
		{Name: DefaultData, Type: SubnetPrivateIsolated, CIDRMask: 28},
	}
}
