// Package compute declares the application fleet: its instance role and
// profile, the security group admitting traffic only from the load
// balancer, the launch template carrying the bootstrap payload, and the
// autoscaling group registered with the target group.
package compute
