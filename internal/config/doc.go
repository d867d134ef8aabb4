// Package config defines the stack definition consumed by synthesis and the
// behavioural models.
//
// A [Config] is loaded from stack.yaml, merged with environment overrides,
// defaulted with [Config.ApplyDefaults] and checked with [Config.Validate].
// The network block is carved into per-tier, per-AZ subnets by
// [AllocateSubnets].
package config
