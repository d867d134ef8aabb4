// Package artifacts models the release artifact store: a bucket whose
// objects are always encrypted at rest, whose public access is blocked and
// whose policy refuses any request made without TLS.
package artifacts
