// Package delivery declares the deployment pipeline: a deployment
// application, the minimum-healthy-hosts configuration that gates a rollout,
// and the deployment group binding both to the autoscaling group and its
// target group.
package delivery
