// Package fleet models the autoscaling group of application hosts. A fleet
// keeps its member count at the desired capacity, bootstraps every new
// member before registering it with the router and replaces members that
// are marked unhealthy.
package fleet
