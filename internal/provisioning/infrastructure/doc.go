// Package infrastructure declares the network, egress endpoints and load
// balancer of a stack.
//
// The network is carved into one subnet per (tier, availability zone) with
// a route table each. Public tiers route to the internet gateway, egress
// tiers to the NAT gateway of their AZ group, and isolated tiers have no
// default route. The load balancer is internet-facing in the public tier.
package infrastructure
