// Package router models the traffic router's target group: per-target
// health state driven by consecutive check results, round-robin selection
// over healthy targets, and connection draining on deregistration.
//
// Time is taken from a clockwork.Clock so the health and drain timing can be
// driven by a fake clock in tests and in the simulate command.
package router
