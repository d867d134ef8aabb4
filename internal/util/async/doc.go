// Package async provides utilities for parallel task execution.
//
// The audit command uses it to read several live resources at once and
// report every failed check together.
package async
