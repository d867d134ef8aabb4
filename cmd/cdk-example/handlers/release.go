package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/config"
	awsplatform "github.com/joel-cunningham/cdk-example/internal/platform/aws"
)

// Releaser uploads bundles and drives deployments. *aws.Client implements it.
type Releaser interface {
	UploadRevision(ctx context.Context, up awsplatform.Upload) (*awsplatform.UploadResult, error)
	StartDeployment(ctx context.Context, req awsplatform.DeploymentRequest) (string, error)
	WaitForDeployment(ctx context.Context, id string, poll time.Duration) (*awsplatform.DeploymentStatus, error)
}

// newReleaser creates the client behind release (for testing injection).
var newReleaser = func(ctx context.Context, region string) (Releaser, error) {
	client, err := newAWSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ReleaseOptions configures Release.
type ReleaseOptions struct {
	ConfigPath string
	Bundle     string
	// Revision is the object key of the bundle in the artifact bucket.
	Revision string
	// Bucket overrides artifact_store.bucket_name for generated names.
	Bucket string
	Wait   bool
}

// Release uploads a bundle to the artifact bucket and deploys it to the
// fleet through the deployment group.
func Release(ctx context.Context, out io.Writer, opts ReleaseOptions) error {
	if opts.Bundle == "" || opts.Revision == "" {
		return errors.New("both --bundle and --revision are required")
	}
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	bucket := opts.Bucket
	if bucket == "" {
		bucket = cfg.ArtifactStore.BucketName
	}
	if bucket == "" {
		return errors.New("artifact bucket name is generated at deploy time; pass --bucket")
	}

	body, err := readFile(opts.Bundle)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	client, err := newReleaser(ctx, cfg.Region)
	if err != nil {
		return err
	}

	up := awsplatform.Upload{
		Bucket:     bucket,
		Key:        opts.Revision,
		Body:       body,
		Encryption: artifacts.EncryptionFromConfig(cfg.ArtifactStore.Encryption),
	}
	if cfg.ArtifactStore.Encryption == config.EncryptionKMS {
		up.KMSKeyID = cfg.ArtifactStore.KMSKeyAlias
	}
	stored, err := client.UploadRevision(ctx, up)
	if err != nil {
		return err
	}

	p := newPrinter(out)
	p.printf("%s uploaded s3://%s/%s %s\n", p.mark(true), bucket, opts.Revision, p.dim.Render(stored.VersionID))

	id, err := client.StartDeployment(ctx, awsplatform.DeploymentRequest{
		Application:     cfg.Pipeline.ApplicationName,
		DeploymentGroup: cfg.Pipeline.DeploymentGroupName,
		Revision: awsplatform.Revision{
			Bucket:  bucket,
			Key:     opts.Revision,
			Version: stored.VersionID,
			ETag:    stored.ETag,
		},
		Description: "release " + opts.Revision,
	})
	if err != nil {
		return err
	}
	p.printf("%s started deployment %s to %s\n", p.mark(true), id, cfg.Pipeline.DeploymentGroupName)

	if !opts.Wait {
		return nil
	}
	status, err := client.WaitForDeployment(ctx, id, config.LoadTimeouts().RolloutPoll)
	if status != nil {
		p.printf("%s deployment %s %s: %d succeeded, %d failed, %d skipped\n",
			p.mark(err == nil), id, status.Status, status.Succeeded, status.Failed, status.Skipped)
	}
	return err
}
