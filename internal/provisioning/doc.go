// Package provisioning provides shared types, interfaces, and orchestration for stack synthesis.
//
// # Subpackages
//
//   - infrastructure/: Network tiers, NAT, VPC endpoints, Load Balancer
//   - compute/: Instance role, Launch Template, Autoscaling Group
//   - delivery/: Deployment application, config and group
//   - identity/: OIDC provider and the CI deploy role
//   - storage/: Release artifact bucket and its grants
//   - destroy/: Teardown plan in reverse dependency order
//
// # Core Types
//
// Context carries configuration, the network layout, the topology builder, state and observer.
// Phase defines a synthesis step with Name() and Provision() methods.
// State accumulates the logical IDs each phase declares so later phases can reference them.
package provisioning
