package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	AWSCall           time.Duration // Timeout for a single provider API call
	RolloutPause      time.Duration // How long a rollout waits for the healthy floor before failing
	HostHealthy       time.Duration // How long a redeployed host may take to pass health checks
	RolloutPoll       time.Duration // Poll interval while a rollout waits
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - CDK_TIMEOUT_AWS_CALL (default: 30s)
//   - CDK_TIMEOUT_ROLLOUT_PAUSE (default: 10m)
//   - CDK_TIMEOUT_HOST_HEALTHY (default: 5m)
//   - CDK_ROLLOUT_POLL_INTERVAL (default: 5s)
//   - CDK_RETRY_MAX_ATTEMPTS (default: 5)
//   - CDK_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		AWSCall:           parseDuration("CDK_TIMEOUT_AWS_CALL", 30*time.Second),
		RolloutPause:      parseDuration("CDK_TIMEOUT_ROLLOUT_PAUSE", 10*time.Minute),
		HostHealthy:       parseDuration("CDK_TIMEOUT_HOST_HEALTHY", 5*time.Minute),
		RolloutPoll:       parseDuration("CDK_ROLLOUT_POLL_INTERVAL", 5*time.Second),
		RetryMaxAttempts:  parseInt("CDK_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("CDK_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
