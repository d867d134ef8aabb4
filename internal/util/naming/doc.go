// Package naming provides consistent names and ARNs for stack resources.
//
// Physical names follow the pattern {stack}-{type}. Names with a provider
// length limit (load balancers and target groups allow 32 characters) are
// truncated so the type suffix is kept.
package naming
