package artifacts

import (
	"fmt"

	"github.com/joel-cunningham/cdk-example/internal/policy"
)

// Condition keys evaluated by the bucket policy.
const (
	SecureTransportKey = "aws:SecureTransport"
	EncryptionKey      = "s3:x-amz-server-side-encryption"
)

var (
	readActions  = []string{"s3:GetObject", "s3:GetObjectVersion"}
	writeActions = []string{"s3:PutObject", "s3:AbortMultipartUpload"}
	listActions  = []string{"s3:ListBucket", "s3:GetBucketLocation"}
)

// BucketPolicy denies every request made without TLS and every upload that
// asks for an encryption mode other than enc. Uploads that name no mode get
// the bucket default and are not denied. Bucket and objects may be ARNs
// or topology references.
func BucketPolicy(bucket, objects any, enc Encryption) policy.Document {
	return policy.NewDocument(
		policy.Statement{
			Sid:       "DenyInsecureTransport",
			Effect:    policy.Deny,
			Principal: policy.AnyPrincipal(),
			Action:    []string{"s3:*"},
			Resource:  []any{bucket, objects},
			Condition: map[string]map[string][]string{
				"Bool": {SecureTransportKey: {"false"}},
			},
		},
		policy.Statement{
			Sid:       "DenyUnexpectedEncryption",
			Effect:    policy.Deny,
			Principal: policy.AnyPrincipal(),
			Action:    []string{"s3:PutObject"},
			Resource:  []any{objects},
			Condition: map[string]map[string][]string{
				"Null":            {EncryptionKey: {"false"}},
				"StringNotEquals": {EncryptionKey: {string(enc)}},
			},
		},
	)
}

// ReadGrant lets a principal list the bucket and read objects.
func ReadGrant(bucket, objects any) policy.Document {
	return policy.NewDocument(
		policy.Statement{Sid: "ListReleases", Effect: policy.Allow, Action: listActions, Resource: []any{bucket}},
		policy.Statement{Sid: "ReadReleases", Effect: policy.Allow, Action: readActions, Resource: []any{objects}},
	)
}

// ReadWriteGrant extends ReadGrant with uploads.
func ReadWriteGrant(bucket, objects any) policy.Document {
	doc := ReadGrant(bucket, objects)
	doc.Statement = append(doc.Statement, policy.Statement{
		Sid: "WriteReleases", Effect: policy.Allow, Action: writeActions, Resource: []any{objects},
	})
	return doc
}

// KMSGrant lets a principal use the bucket key through S3 only. Writers
// also need to generate data keys.
func KMSGrant(key any, region string, write bool) policy.Document {
	actions := []string{"kms:Decrypt"}
	if write {
		actions = append(actions, "kms:Encrypt", "kms:GenerateDataKey*", "kms:ReEncrypt*")
	}
	return policy.NewDocument(policy.Statement{
		Sid:      "UseReleaseKey",
		Effect:   policy.Allow,
		Action:   actions,
		Resource: []any{key},
		Condition: map[string]map[string][]string{
			"StringEquals": {"kms:ViaService": {fmt.Sprintf("s3.%s.amazonaws.com", region)}},
		},
	})
}
