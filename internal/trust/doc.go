// Package trust models the federation between an external CI system and the
// deployment role. A CI token is verified against the issuer's signing keys,
// then its claims are evaluated against the role's trust policy. Only when
// every condition holds is a short-lived Session issued, and the session is
// limited to the role's permission policy.
package trust
