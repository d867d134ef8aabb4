// Package identity declares the trust federation: the OIDC provider for the
// CI issuer and the deploy role that CI assumes with a web identity token.
//
// The role trusts the provider only for tokens whose audience equals the
// configured audience and whose subject matches the configured pattern. Its
// permissions are limited to starting and reading deployments of this stack.
package identity
