// Package audit compares live AWS resources with the security posture the
// synthesized topology declares.
//
// The audit is read-only. It checks the artifact bucket (encryption, public
// access block, versioning, TLS-only policy), the bucket key, the CI
// identity provider (URL, audience, thumbprints) and the VPC endpoints.
// Resources whose physical identifiers are unknown are reported as skipped.
package audit
