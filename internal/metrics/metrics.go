// Package metrics holds the Prometheus collectors shared by the router,
// fleet and rollout models and by the AWS client wrappers.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "cdkexample"

// Registry is the registry every collector in this package is registered on.
var Registry = prometheus.NewRegistry()

var (
	// Router metrics
	routerTargets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "targets",
			Help:      "Number of targets by target group and health state",
		},
		[]string{"target_group", "state"},
	)

	routerHealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "health_checks_total",
			Help:      "Total number of health checks by target group and result",
		},
		[]string{"target_group", "result"},
	)

	routerConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "connections_total",
			Help:      "Total number of routed connections by target group",
		},
		[]string{"target_group"},
	)

	// Fleet metrics
	fleetMembers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "members",
			Help:      "Number of fleet members by lifecycle state",
		},
		[]string{"fleet", "state"},
	)

	fleetReplacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "replacements_total",
			Help:      "Total number of replaced fleet members by reason",
		},
		[]string{"fleet", "reason"},
	)

	// Rollout metrics
	rolloutHostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollout",
			Name:      "hosts_total",
			Help:      "Total number of host updates by result",
		},
		[]string{"result"},
	)

	rolloutDeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollout",
			Name:      "deployments_total",
			Help:      "Total number of deployments by final status",
		},
		[]string{"status"},
	)

	rolloutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollout",
			Name:      "duration_seconds",
			Help:      "Duration of deployments in seconds",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21min
		},
	)

	// AWS API metrics
	awsAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aws",
			Name:      "api_calls_total",
			Help:      "Total number of AWS API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	awsAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aws",
			Name:      "api_latency_seconds",
			Help:      "Latency of AWS API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
		},
		[]string{"operation"},
	)
)

func init() {
	Registry.MustRegister(
		routerTargets,
		routerHealthChecksTotal,
		routerConnectionsTotal,
		fleetMembers,
		fleetReplacementsTotal,
		rolloutHostsTotal,
		rolloutDeploymentsTotal,
		rolloutDuration,
		awsAPICallsTotal,
		awsAPILatency,
	)
}

// RecordRouterTargets sets the per-state target counts of a target group.
func RecordRouterTargets(targetGroup string, byState map[string]int) {
	for state, n := range byState {
		routerTargets.WithLabelValues(targetGroup, state).Set(float64(n))
	}
}

// RecordHealthCheck counts one health check result.
func RecordHealthCheck(targetGroup string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	routerHealthChecksTotal.WithLabelValues(targetGroup, result).Inc()
}

// RecordConnection counts one routed connection.
func RecordConnection(targetGroup string) {
	routerConnectionsTotal.WithLabelValues(targetGroup).Inc()
}

// RecordFleetMembers sets the per-state member counts of a fleet.
func RecordFleetMembers(fleet string, byState map[string]int) {
	for state, n := range byState {
		fleetMembers.WithLabelValues(fleet, state).Set(float64(n))
	}
}

// RecordFleetReplacement counts one replaced member.
func RecordFleetReplacement(fleet, reason string) {
	fleetReplacementsTotal.WithLabelValues(fleet, reason).Inc()
}

// RecordRolloutHost counts one host update result.
func RecordRolloutHost(result string) {
	rolloutHostsTotal.WithLabelValues(result).Inc()
}

// RecordDeployment counts a finished deployment and its duration.
func RecordDeployment(status string, seconds float64) {
	rolloutDeploymentsTotal.WithLabelValues(status).Inc()
	rolloutDuration.Observe(seconds)
}

// RecordAWSCall records an AWS API call.
func RecordAWSCall(operation string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	awsAPICallsTotal.WithLabelValues(operation, result).Inc()
	awsAPILatency.WithLabelValues(operation).Observe(seconds)
}

// WriteText writes every registered metric family in the text exposition
// format.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
