// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating valid stack configurations
//   - Fixtures: the thumbprint, subject pattern and bootstrap payload used across packages
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithStackName("web").
//	    WithCapacity(2, 4).
//	    Build()
package testing
