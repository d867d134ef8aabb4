// Package aws provides the AWS API clients used outside of synthesis: the
// live-resource audit, machine image and availability zone lookups, and
// release uploads that trigger a deployment.
//
// Every call goes through Client.call, which bounds it with the configured
// per-call timeout, retries transient failures and records the call in the
// metrics registry.
package aws
