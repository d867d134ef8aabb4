package storage

import (
	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Logical IDs and outputs of the artifact store.
const (
	BucketID         = "ArtifactBucket"
	BucketPolicyID   = "ArtifactBucketPolicy"
	KeyID            = "ArtifactKey"
	KeyAliasID       = "ArtifactKeyAlias"
	BucketNameOutput = "ArtifactBucketName"
	accountRoot      = "arn:${AWS::Partition}:iam::${AWS::AccountId}:root"
)

// objectsOf addresses every object in the bucket.
func objectsOf(bucketID string) topology.Sub {
	return topology.Sub("${" + bucketID + ".Arn}/*")
}

// DeletionPolicy maps the configured removal policy.
func DeletionPolicy(removal string) string {
	if removal == config.RemovalRetain {
		return topology.DeletionRetain
	}
	return topology.DeletionDelete
}

// ProvisionBucket declares the bucket, its optional customer managed key,
// and the bucket policy.
func ProvisionBucket(ctx *provisioning.Context) error {
	store := ctx.Config.ArtifactStore
	enc := artifacts.EncryptionFromConfig(store.Encryption)
	deletion := DeletionPolicy(store.RemovalPolicy)

	sse := map[string]any{"SSEAlgorithm": string(enc)}
	if enc == artifacts.EncryptionKMS {
		if err := provisionKey(ctx, deletion); err != nil {
			return err
		}
		sse["KMSMasterKeyID"] = topology.GetAtt(KeyID, "Arn")
	}

	props := map[string]any{
		"BucketEncryption": map[string]any{
			"ServerSideEncryptionConfiguration": []any{
				map[string]any{
					"ServerSideEncryptionByDefault": sse,
					"BucketKeyEnabled":              enc == artifacts.EncryptionKMS,
				},
			},
		},
		"PublicAccessBlockConfiguration": map[string]any{
			"BlockPublicAcls":       true,
			"IgnorePublicAcls":      true,
			"BlockPublicPolicy":     true,
			"RestrictPublicBuckets": true,
		},
		"OwnershipControls": map[string]any{
			"Rules": []any{map[string]any{"ObjectOwnership": "BucketOwnerEnforced"}},
		},
		"Tags": ctx.Tags(topology.ComponentStore).Build(),
	}
	if store.BucketName != "" {
		props["BucketName"] = store.BucketName
	}
	if store.Versioned {
		props["VersioningConfiguration"] = map[string]any{"Status": "Enabled"}
	}

	err := ctx.Declare(phase, topology.Resource{
		LogicalID:      BucketID,
		Type:           "AWS::S3::Bucket",
		Component:      topology.ComponentStore,
		Properties:     props,
		DeletionPolicy: deletion,
	})
	if err != nil {
		return err
	}
	ctx.State.Bucket = BucketID

	err = ctx.Declare(phase, topology.Resource{
		LogicalID: BucketPolicyID,
		Type:      "AWS::S3::BucketPolicy",
		Component: topology.ComponentStore,
		Properties: map[string]any{
			"Bucket":         topology.Ref(BucketID),
			"PolicyDocument": artifacts.BucketPolicy(topology.GetAtt(BucketID, "Arn"), objectsOf(BucketID), enc),
		},
	})
	if err != nil {
		return err
	}
	ctx.State.BucketPolicy = BucketPolicyID

	return ctx.Builder.AddOutput(BucketNameOutput, topology.Output{
		Description: "Bucket CI publishes releases to",
		Value:       topology.Ref(BucketID),
	})
}

// provisionKey declares a rotating key administered by the account and an
// alias for it. The key follows the bucket's deletion policy.
func provisionKey(ctx *provisioning.Context, deletion string) error {
	keyPolicy := policy.NewDocument(policy.Statement{
		Sid:       "AccountAdministration",
		Effect:    policy.Allow,
		Principal: map[string][]any{policy.PrincipalAWS: {topology.Sub(accountRoot)}},
		Action:    []string{"kms:*"},
		Resource:  []any{"*"},
	})

	err := ctx.Declare(phase, topology.Resource{
		LogicalID: KeyID,
		Type:      "AWS::KMS::Key",
		Component: topology.ComponentStore,
		Properties: map[string]any{
			"Description":       "Release artifact encryption for " + ctx.Config.StackName,
			"EnableKeyRotation": true,
			"KeyPolicy":         keyPolicy,
			"Tags":              ctx.Tags(topology.ComponentStore).Build(),
		},
		DeletionPolicy: deletion,
	})
	if err != nil {
		return err
	}
	ctx.State.BucketKey = KeyID

	return ctx.Declare(phase, topology.Resource{
		LogicalID: KeyAliasID,
		Type:      "AWS::KMS::Alias",
		Component: topology.ComponentStore,
		Properties: map[string]any{
			"AliasName":   ctx.Config.ArtifactStore.KMSKeyAlias,
			"TargetKeyId": topology.Ref(KeyID),
		},
	})
}
