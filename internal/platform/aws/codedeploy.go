package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	"github.com/go-logr/logr"
)

// ErrDeploymentFailed is returned when a deployment ends in any state other
// than Succeeded.
var ErrDeploymentFailed = errors.New("deployment did not succeed")

// Revision is a release bundle stored in the artifact bucket.
type Revision struct {
	Bucket  string
	Key     string
	Version string
	ETag    string
}

func (r Revision) location() *cdtypes.RevisionLocation {
	loc := &cdtypes.S3Location{
		Bucket:     aws.String(r.Bucket),
		Key:        aws.String(r.Key),
		BundleType: cdtypes.BundleTypeZip,
	}
	if r.Version != "" {
		loc.Version = aws.String(r.Version)
	}
	if r.ETag != "" {
		loc.ETag = aws.String(r.ETag)
	}
	return &cdtypes.RevisionLocation{
		RevisionType: cdtypes.RevisionLocationTypeS3,
		S3Location:   loc,
	}
}

// DeploymentRequest starts a rollout of a revision onto a deployment group.
type DeploymentRequest struct {
	Application     string
	DeploymentGroup string
	// DeploymentConfig overrides the group's configuration when set.
	DeploymentConfig string
	Revision         Revision
	Description      string
}

// StartDeployment registers the revision with the application and creates a
// deployment of it. It returns the deployment ID.
func (c *Client) StartDeployment(ctx context.Context, req DeploymentRequest) (string, error) {
	if c.apis.CodeDeploy == nil {
		return "", fmt.Errorf("codedeploy: %w", ErrNotConfigured)
	}
	loc := req.Revision.location()

	err := c.call(ctx, "codedeploy:RegisterApplicationRevision", func(ctx context.Context) error {
		_, err := c.apis.CodeDeploy.RegisterApplicationRevision(ctx, &codedeploy.RegisterApplicationRevisionInput{
			ApplicationName: aws.String(req.Application),
			Revision:        loc,
			Description:     aws.String(req.Description),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to register revision %s: %w", req.Revision.Key, err)
	}

	in := &codedeploy.CreateDeploymentInput{
		ApplicationName:     aws.String(req.Application),
		DeploymentGroupName: aws.String(req.DeploymentGroup),
		Revision:            loc,
		Description:         aws.String(req.Description),
	}
	if req.DeploymentConfig != "" {
		in.DeploymentConfigName = aws.String(req.DeploymentConfig)
	}
	var out *codedeploy.CreateDeploymentOutput
	err = c.call(ctx, "codedeploy:CreateDeployment", func(ctx context.Context) error {
		var err error
		out, err = c.apis.CodeDeploy.CreateDeployment(ctx, in)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create deployment for group %s: %w", req.DeploymentGroup, err)
	}
	return aws.ToString(out.DeploymentId), nil
}

// DeploymentStatus is the state of a deployment and its per-host counts.
type DeploymentStatus struct {
	ID         string
	Status     string
	Message    string
	Succeeded  int64
	Failed     int64
	InProgress int64
	Pending    int64
	Skipped    int64
}

// Done reports whether the deployment reached a final state.
func (s *DeploymentStatus) Done() bool {
	switch cdtypes.DeploymentStatus(s.Status) {
	case cdtypes.DeploymentStatusSucceeded, cdtypes.DeploymentStatusFailed, cdtypes.DeploymentStatusStopped:
		return true
	}
	return false
}

// DeploymentStatus reads the current state of a deployment.
func (c *Client) DeploymentStatus(ctx context.Context, id string) (*DeploymentStatus, error) {
	if c.apis.CodeDeploy == nil {
		return nil, fmt.Errorf("codedeploy: %w", ErrNotConfigured)
	}
	var out *codedeploy.GetDeploymentOutput
	err := c.call(ctx, "codedeploy:GetDeployment", func(ctx context.Context) error {
		var err error
		out, err = c.apis.CodeDeploy.GetDeployment(ctx, &codedeploy.GetDeploymentInput{DeploymentId: aws.String(id)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", id, err)
	}
	if out.DeploymentInfo == nil {
		return nil, fmt.Errorf("deployment %s has no info", id)
	}

	info := out.DeploymentInfo
	status := &DeploymentStatus{ID: id, Status: string(info.Status)}
	if info.ErrorInformation != nil {
		status.Message = aws.ToString(info.ErrorInformation.Message)
	}
	if o := info.DeploymentOverview; o != nil {
		status.Succeeded = o.Succeeded
		status.Failed = o.Failed
		status.InProgress = o.InProgress
		status.Pending = o.Pending
		status.Skipped = o.Skipped
	}
	return status, nil
}

// WaitForDeployment polls a deployment until it reaches a final state. It
// returns ErrDeploymentFailed with the final status when the deployment
// failed or was stopped.
func (c *Client) WaitForDeployment(ctx context.Context, id string, poll time.Duration) (*DeploymentStatus, error) {
	log := logr.FromContextOrDiscard(ctx)
	ticker := c.clock.NewTicker(poll)
	defer ticker.Stop()

	for {
		status, err := c.DeploymentStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		log.V(1).Info("Deployment status", "id", id, "status", status.Status,
			"succeeded", status.Succeeded, "inProgress", status.InProgress, "failed", status.Failed)
		if status.Done() {
			if cdtypes.DeploymentStatus(status.Status) != cdtypes.DeploymentStatusSucceeded {
				return status, fmt.Errorf("%w: %s is %s: %s", ErrDeploymentFailed, id, status.Status, status.Message)
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("stopped waiting for deployment %s: %w", id, ctx.Err())
		case <-ticker.Chan():
		}
	}
}
