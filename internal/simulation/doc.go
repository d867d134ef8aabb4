// Package simulation drives the fleet, router and rollout models for one
// stack on a fake clock. It launches the fleet, waits for every member to
// pass its health checks and then rolls a revision across it, reporting
// how long each stage took in simulated time.
package simulation
