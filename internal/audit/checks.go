package audit

import (
	"context"
	"fmt"
	"slices"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	awsplatform "github.com/joel-cunningham/cdk-example/internal/platform/aws"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Check names.
const (
	CheckBucketEncryption   = "bucket.encryption"
	CheckBucketPublicAccess = "bucket.public-access"
	CheckBucketTLS          = "bucket.tls-only"
	CheckBucketVersioning   = "bucket.versioning"
	CheckKeyRotation        = "key.rotation"
	CheckProviderURL        = "provider.url"
	CheckProviderAudience   = "provider.audience"
	CheckProviderThumbprint = "provider.thumbprints"
	CheckEndpoint           = "endpoint"
)

func (a *Auditor) checkBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		a.skip(CheckBucketEncryption, "bucket name is generated at deploy time; pass it explicitly")
		return nil
	}
	sec, err := a.reader.BucketSecurity(ctx, bucket)
	if err != nil {
		return err
	}

	want := wantEncryption(a.cfg)
	a.record(CheckBucketEncryption, bucket, sec.Encryption == want,
		"default encryption is %q, want %q", sec.Encryption, want)

	a.record(CheckBucketPublicAccess, bucket, sec.PublicAccess == artifacts.BlockAll(),
		"public access block is %+v", sec.PublicAccess)

	if a.cfg.ArtifactStore.Versioned {
		a.record(CheckBucketVersioning, bucket, sec.Versioned, "versioning enabled: %t", sec.Versioned)
	}

	objects := naming.NewScope(a.cfg.Region, "").BucketARN(bucket) + "/" + probeKey
	denied := deniesPlaintext(sec.Policy, objects)
	a.record(CheckBucketTLS, bucket, denied, "plaintext reads denied: %t", denied)
	return nil
}

// probeKey is the object a plaintext read is evaluated against.
const probeKey = "releases/probe.zip"

// deniesPlaintext evaluates the live policy for an anonymous read made
// without TLS.
func deniesPlaintext(doc *policy.Document, object string) bool {
	if doc == nil {
		return false
	}
	req := policy.Request{
		Principal: policy.Principal{Type: policy.PrincipalAWS, ID: "*"},
		Action:    "s3:GetObject",
		Resource:  object,
		Context:   map[string][]string{artifacts.SecureTransportKey: {"false"}},
	}
	return policy.Evaluate(req, *doc) == policy.ExplicitDeny
}

func (a *Auditor) checkKey(ctx context.Context) error {
	alias := a.cfg.ArtifactStore.KMSKeyAlias
	if alias == "" {
		a.skip(CheckKeyRotation, "key is created by the stack without an alias")
		return nil
	}
	key, err := a.reader.KeyForAlias(ctx, alias)
	if err != nil {
		return err
	}
	a.record(CheckKeyRotation, alias, key.Enabled && key.Rotation,
		"enabled: %t, rotation: %t", key.Enabled, key.Rotation)
	return nil
}

func (a *Auditor) checkProvider(ctx context.Context, arn string) error {
	p, err := a.reader.OIDCProvider(ctx, arn)
	if err != nil {
		return err
	}
	trust := a.cfg.Trust

	host := naming.OIDCHost(trust.ProviderURL)
	a.record(CheckProviderURL, arn, naming.OIDCHost(p.URL) == host,
		"provider URL is %q, want %q", p.URL, host)

	a.record(CheckProviderAudience, arn, slices.Equal(p.Audiences, []string{trust.Audience}),
		"audiences are %v, want only %q", p.Audiences, trust.Audience)

	a.record(CheckProviderThumbprint, arn, sameSet(p.Thumbprints, trust.Thumbprints),
		"thumbprints are %v, want %v", p.Thumbprints, trust.Thumbprints)
	return nil
}

func (a *Auditor) checkEndpoints(ctx context.Context, vpcID string) error {
	eps := a.cfg.Network.Endpoints
	if len(eps.Gateway)+len(eps.Interface) == 0 {
		return nil
	}
	if vpcID == "" {
		a.skip(CheckEndpoint, "VPC ID is assigned at deploy time; pass it explicitly")
		return nil
	}

	live, err := a.reader.VPCEndpoints(ctx, vpcID)
	if err != nil {
		return err
	}
	byService := make(map[string]awsplatform.Endpoint, len(live))
	for _, ep := range live {
		byService[ep.Service] = ep
	}

	check := func(class, wantType string, wantDNS bool) {
		service := fmt.Sprintf("com.amazonaws.%s.%s", a.cfg.Region, class)
		ep, ok := byService[service]
		switch {
		case !ok:
			a.record(CheckEndpoint, service, false, "no %s endpoint in %s", wantType, vpcID)
		case ep.Type != wantType:
			a.record(CheckEndpoint, service, false, "endpoint %s is %s, want %s", ep.ID, ep.Type, wantType)
		case wantDNS && !ep.PrivateDNS:
			a.record(CheckEndpoint, service, false, "endpoint %s has private DNS disabled", ep.ID)
		default:
			a.record(CheckEndpoint, service, true, "endpoint %s is %s", ep.ID, ep.State)
		}
	}
	for _, class := range eps.Gateway {
		check(class, "Gateway", false)
	}
	for _, class := range eps.Interface {
		check(class, "Interface", true)
	}
	return nil
}
