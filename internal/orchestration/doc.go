// Package orchestration provides high-level workflow coordination for stack synthesis.
//
// This package orchestrates synthesis by delegating to specialized
// provisioners in the internal/provisioning subpackages. It defines the execution order
// and coordinates state flow between provisioning phases.
//
// # Workflow
//
// The Synthesizer executes the following phases in order:
//  1. Validation - Pre-flight configuration validation
//  2. Infrastructure - Network tiers, NAT, endpoints, load balancer
//  3. Compute - Instance role, launch template, autoscaling group
//  4. Delivery - Deployment application, config and group
//  5. Identity - OIDC provider and CI deploy role
//  6. Storage - Release artifact bucket and grants
//
// The declared resources are then frozen into a topology.Graph and checked
// against the topology invariants.
//
// # Usage
//
//	graph, err := orchestration.Synthesize(ctx, cfg)
//
// Synthesis is deterministic: the same configuration always yields the same
// template, so it can be run any number of times.
package orchestration
