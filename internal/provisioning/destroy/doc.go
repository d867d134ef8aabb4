// Package destroy plans stack teardown.
//
// Resources are removed in reverse dependency order: grants and policies
// first, then the pipeline, the fleet and the load balancer, and the network
// last. Resources whose deletion policy is Retain are left in place and
// reported so their owners can clean them up by hand.
package destroy
