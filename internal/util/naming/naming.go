package naming

import (
	"fmt"
	"strings"
)

// maxELBName is the name length limit for load balancers and target groups.
const maxELBName = 32

// Naming functions for stack resources.

func LoadBalancer(stack string) string {
	return limit(stack, "-lb", maxELBName)
}

func TargetGroup(stack string) string {
	return limit(stack, "-tg", maxELBName)
}

func AutoScalingGroup(stack string) string {
	return fmt.Sprintf("%s-fleet", stack)
}

func LaunchTemplate(stack string) string {
	return fmt.Sprintf("%s-launch-template", stack)
}

func ServiceRole(stack string) string {
	return fmt.Sprintf("%s-codedeploy-service", stack)
}

func InstanceRole(stack string) string {
	return fmt.Sprintf("%s-instance", stack)
}

// OIDCHost strips the scheme from an issuer URL. IAM condition keys and
// provider ARNs use the bare host and path.
func OIDCHost(issuerURL string) string {
	host := strings.TrimPrefix(issuerURL, "https://")
	return strings.TrimSuffix(host, "/")
}

// LogicalID joins parts into a template logical ID: every run of letters
// and digits is capitalized and everything else is dropped, so
// ("application", "subnet", "1") becomes "ApplicationSubnet1".
func LogicalID(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		upper := true
		for _, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				if upper {
					b.WriteString(strings.ToUpper(string(r)))
					upper = false
				} else {
					b.WriteRune(r)
				}
			default:
				upper = true
			}
		}
	}
	return b.String()
}

func limit(stack, suffix string, max int) string {
	if len(stack)+len(suffix) > max {
		stack = strings.TrimRight(stack[:max-len(suffix)], "-")
	}
	return stack + suffix
}

// Scope locates ARNs in one partition, region and account.
type Scope struct {
	Partition string
	Region    string
	Account   string
}

// NewScope derives the partition from the region.
func NewScope(region, account string) Scope {
	return Scope{Partition: Partition(region), Region: region, Account: account}
}

// Partition returns the ARN partition of a region.
func Partition(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

func (s Scope) BucketARN(bucket string) string {
	return fmt.Sprintf("arn:%s:s3:::%s", s.Partition, bucket)
}

// ObjectsARN matches every object in a bucket.
func (s Scope) ObjectsARN(bucket string) string {
	return s.BucketARN(bucket) + "/*"
}

func (s Scope) RoleARN(name string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", s.Partition, s.Account, name)
}

func (s Scope) OIDCProviderARN(issuerURL string) string {
	return fmt.Sprintf("arn:%s:iam::%s:oidc-provider/%s", s.Partition, s.Account, OIDCHost(issuerURL))
}

func (s Scope) ApplicationARN(app string) string {
	return fmt.Sprintf("arn:%s:codedeploy:%s:%s:application:%s", s.Partition, s.Region, s.Account, app)
}

func (s Scope) DeploymentGroupARN(app, group string) string {
	return fmt.Sprintf("arn:%s:codedeploy:%s:%s:deploymentgroup:%s/%s", s.Partition, s.Region, s.Account, app, group)
}

func (s Scope) DeploymentConfigARN(name string) string {
	return fmt.Sprintf("arn:%s:codedeploy:%s:%s:deploymentconfig:%s", s.Partition, s.Region, s.Account, name)
}

func (s Scope) KMSAliasARN(alias string) string {
	return fmt.Sprintf("arn:%s:kms:%s:%s:%s", s.Partition, s.Region, s.Account, alias)
}
