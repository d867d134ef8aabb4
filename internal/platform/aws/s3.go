package aws

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/policy"
)

// BucketSecurity is the live security configuration of a bucket. Fields
// whose configuration does not exist keep their zero value.
type BucketSecurity struct {
	Name         string
	Encryption   artifacts.Encryption
	KMSKeyID     string
	PublicAccess artifacts.PublicAccessBlock
	Versioned    bool
	// Policy is nil when the bucket has no policy.
	Policy *policy.Document
}

// BucketSecurity reads the encryption, public access block, versioning and
// policy of a bucket.
func (c *Client) BucketSecurity(ctx context.Context, bucket string) (*BucketSecurity, error) {
	if c.apis.S3 == nil {
		return nil, fmt.Errorf("s3: %w", ErrNotConfigured)
	}
	sec := &BucketSecurity{Name: bucket}

	var enc *s3.GetBucketEncryptionOutput
	err := c.call(ctx, "s3:GetBucketEncryption", func(ctx context.Context) error {
		var err error
		enc, err = c.apis.S3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(bucket)})
		return err
	})
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("failed to read encryption of bucket %s: %w", bucket, err)
	}
	if enc != nil && enc.ServerSideEncryptionConfiguration != nil {
		for _, rule := range enc.ServerSideEncryptionConfiguration.Rules {
			if def := rule.ApplyServerSideEncryptionByDefault; def != nil {
				sec.Encryption = artifacts.Encryption(def.SSEAlgorithm)
				sec.KMSKeyID = aws.ToString(def.KMSMasterKeyID)
				break
			}
		}
	}

	var block *s3.GetPublicAccessBlockOutput
	err = c.call(ctx, "s3:GetPublicAccessBlock", func(ctx context.Context) error {
		var err error
		block, err = c.apis.S3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
		return err
	})
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("failed to read public access block of bucket %s: %w", bucket, err)
	}
	if block != nil && block.PublicAccessBlockConfiguration != nil {
		pab := block.PublicAccessBlockConfiguration
		sec.PublicAccess = artifacts.PublicAccessBlock{
			BlockPublicAcls:       aws.ToBool(pab.BlockPublicAcls),
			IgnorePublicAcls:      aws.ToBool(pab.IgnorePublicAcls),
			BlockPublicPolicy:     aws.ToBool(pab.BlockPublicPolicy),
			RestrictPublicBuckets: aws.ToBool(pab.RestrictPublicBuckets),
		}
	}

	var versioning *s3.GetBucketVersioningOutput
	err = c.call(ctx, "s3:GetBucketVersioning", func(ctx context.Context) error {
		var err error
		versioning, err = c.apis.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucket)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read versioning of bucket %s: %w", bucket, err)
	}
	sec.Versioned = versioning.Status == s3types.BucketVersioningStatusEnabled

	var pol *s3.GetBucketPolicyOutput
	err = c.call(ctx, "s3:GetBucketPolicy", func(ctx context.Context) error {
		var err error
		pol, err = c.apis.S3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
		return err
	})
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("failed to read policy of bucket %s: %w", bucket, err)
	}
	if pol != nil && aws.ToString(pol.Policy) != "" {
		doc, err := policy.Parse(aws.ToString(pol.Policy))
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		sec.Policy = &doc
	}

	return sec, nil
}

// Upload is one release bundle to store.
type Upload struct {
	Bucket     string
	Key        string
	Body       []byte
	Encryption artifacts.Encryption
	// KMSKeyID is sent with aws:kms uploads. Empty uses the bucket key.
	KMSKeyID string
}

// UploadResult identifies the stored object.
type UploadResult struct {
	VersionID string
	ETag      string
}

// UploadRevision stores a release bundle, naming the encryption mode
// explicitly so the bucket policy accepts it.
func (c *Client) UploadRevision(ctx context.Context, up Upload) (*UploadResult, error) {
	if c.apis.S3 == nil {
		return nil, fmt.Errorf("s3: %w", ErrNotConfigured)
	}
	var out *s3.PutObjectOutput
	err := c.call(ctx, "s3:PutObject", func(ctx context.Context) error {
		in := &s3.PutObjectInput{
			Bucket:               aws.String(up.Bucket),
			Key:                  aws.String(up.Key),
			Body:                 bytes.NewReader(up.Body),
			ContentLength:        aws.Int64(int64(len(up.Body))),
			ServerSideEncryption: s3types.ServerSideEncryption(up.Encryption),
		}
		if up.Encryption == artifacts.EncryptionKMS && up.KMSKeyID != "" {
			in.SSEKMSKeyId = aws.String(up.KMSKeyID)
		}
		var err error
		out, err = c.apis.S3.PutObject(ctx, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s in bucket %s: %w", up.Key, up.Bucket, err)
	}
	return &UploadResult{
		VersionID: aws.ToString(out.VersionId),
		ETag:      aws.ToString(out.ETag),
	}, nil
}
