// Package policy models access policy documents and evaluates requests
// against them: an explicit Deny in any document wins, an Allow grants, and
// anything else is denied.
package policy
