package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// OIDCProvider is a live OIDC identity provider.
type OIDCProvider struct {
	ARN         string
	URL         string
	Audiences   []string
	Thumbprints []string
}

// OIDCProvider reads an identity provider by ARN.
func (c *Client) OIDCProvider(ctx context.Context, arn string) (*OIDCProvider, error) {
	if c.apis.IAM == nil {
		return nil, fmt.Errorf("iam: %w", ErrNotConfigured)
	}
	var out *iam.GetOpenIDConnectProviderOutput
	err := c.call(ctx, "iam:GetOpenIDConnectProvider", func(ctx context.Context) error {
		var err error
		out, err = c.apis.IAM.GetOpenIDConnectProvider(ctx, &iam.GetOpenIDConnectProviderInput{
			OpenIDConnectProviderArn: aws.String(arn),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read OIDC provider %s: %w", arn, err)
	}
	return &OIDCProvider{
		ARN:         arn,
		URL:         aws.ToString(out.Url),
		Audiences:   out.ClientIDList,
		Thumbprints: out.ThumbprintList,
	}, nil
}

// Key is a live KMS key.
type Key struct {
	ID       string
	ARN      string
	Enabled  bool
	Rotation bool
}

// KeyForAlias resolves a key alias such as alias/web-releases and reports
// whether the key is enabled and rotated.
func (c *Client) KeyForAlias(ctx context.Context, alias string) (*Key, error) {
	if c.apis.KMS == nil {
		return nil, fmt.Errorf("kms: %w", ErrNotConfigured)
	}
	var desc *kms.DescribeKeyOutput
	err := c.call(ctx, "kms:DescribeKey", func(ctx context.Context) error {
		var err error
		desc, err = c.apis.KMS.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(alias)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe key %s: %w", alias, err)
	}
	if desc.KeyMetadata == nil {
		return nil, fmt.Errorf("key %s has no metadata", alias)
	}
	meta := desc.KeyMetadata
	key := &Key{
		ID:      aws.ToString(meta.KeyId),
		ARN:     aws.ToString(meta.Arn),
		Enabled: meta.Enabled && meta.KeyState == kmstypes.KeyStateEnabled,
	}

	var rot *kms.GetKeyRotationStatusOutput
	err = c.call(ctx, "kms:GetKeyRotationStatus", func(ctx context.Context) error {
		var err error
		rot, err = c.apis.KMS.GetKeyRotationStatus(ctx, &kms.GetKeyRotationStatusInput{KeyId: aws.String(key.ID)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read rotation of key %s: %w", alias, err)
	}
	key.Rotation = rot.KeyRotationEnabled
	return key, nil
}
