// Package labels provides consistent tagging for stack resources.
//
// All tags use the cdk-example.io domain prefix and follow a builder pattern
// for constructing tag sets with stack name, component, tier and manager
// identification. Build renders the set in the template's Key/Value list form.
package labels
