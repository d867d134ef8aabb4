package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/artifacts"
	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/orchestration"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/identity"
	"github.com/joel-cunningham/cdk-example/internal/rollout"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/trust"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// ErrAccess is returned when CI could not publish the revision or when a
// request that must be refused was let through.
var ErrAccess = errors.New("access check failed")

// AccessCheck is one request made as CI against the deploy role or the
// artifact store.
type AccessCheck struct {
	Name    string
	Want    bool
	Allowed bool
	Detail  string
}

// OK reports whether the request was decided as expected.
func (c AccessCheck) OK() bool { return c.Want == c.Allowed }

// publish plays CI against the synthesized deploy role: a token for the
// configured repository assumes the role, uploads the revision and may start
// deployments, while a token for a fork, a plain HTTP read and a public
// upload are refused.
func publish(ctx context.Context, cfg *config.Config, baseDir string, clock clockwork.Clock, rev rollout.Revision) ([]AccessCheck, error) {
	g, err := orchestration.NewSynthesizer(cfg, orchestration.WithBaseDir(baseDir)).Synthesize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize stack: %w", err)
	}
	scope := naming.NewScope(cfg.Region, cfg.Account)
	bucketCfg := *cfg
	if bucketCfg.ArtifactStore.BucketName == "" {
		bucketCfg.ArtifactStore.BucketName = rev.Bucket
	}
	role, err := deployRole(g, cfg, scope, bucketCfg.ArtifactStore.BucketName)
	if err != nil {
		return nil, err
	}

	issuer, err := trust.NewIssuer(cfg.Trust.ProviderURL, clock)
	if err != nil {
		return nil, err
	}
	keys, err := issuer.KeySet()
	if err != nil {
		return nil, err
	}
	verifier := trust.NewVerifier(role, keys, clock)

	store, err := artifacts.NewStore(artifacts.BucketFromConfig(&bucketCfg, scope))
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	var checks []AccessCheck
	record := func(name string, want bool, err error) {
		c := AccessCheck{Name: name, Want: want, Allowed: err == nil}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	subject := ciSubject(cfg.Trust.SubjectPattern, "")
	_, err = assume(ctx, issuer, verifier, cfg.Trust.Audience, ciSubject(cfg.Trust.SubjectPattern, "-fork"))
	record("assume role from a fork", false, err)

	session, err := assume(ctx, issuer, verifier, cfg.Trust.Audience, subject)
	record("assume role as "+subject, true, err)
	if err != nil {
		return checks, fmt.Errorf("%w: %v", ErrAccess, err)
	}

	req := artifacts.Request{
		Principal:       policy.Principal{Type: policy.PrincipalAWS, ID: session.RoleARN},
		Identity:        session.Policy(),
		Key:             rev.Key,
		SecureTransport: true,
	}
	_, err = store.Put(req, []byte(rev.Key))
	record("upload "+rev.Key, true, err)

	group := scope.DeploymentGroupARN(cfg.Pipeline.ApplicationName, cfg.Pipeline.DeploymentGroupName)
	record("create deployment", true, allowed(session, "codedeploy:CreateDeployment", group))

	plain := req
	plain.SecureTransport = false
	_, err = store.Get(plain)
	record("read over plain HTTP", false, err)

	public := req
	public.ACL = artifacts.ACLPublicRead
	_, err = store.Put(public, []byte(rev.Key))
	record("upload with a public ACL", false, err)

	for _, c := range checks {
		if !c.OK() {
			return checks, fmt.Errorf("%w: %s", ErrAccess, c.Name)
		}
	}
	return checks, nil
}

// deployRole rebuilds the CI role from its synthesized resource, resolving
// the provider reference to its ARN. The role may write to bucket.
func deployRole(g *topology.Graph, cfg *config.Config, scope naming.Scope, bucket string) (trust.Role, error) {
	res, ok := g.Resource(identity.DeployRoleID)
	if !ok {
		return trust.Role{}, fmt.Errorf("stack has no %s", identity.DeployRoleID)
	}
	name, _ := res.Properties["RoleName"].(string)
	seconds, _ := res.Properties["MaxSessionDuration"].(int)
	doc, ok := res.Properties["AssumeRolePolicyDocument"].(policy.Document)
	if !ok {
		return trust.Role{}, fmt.Errorf("%s has no trust policy", identity.DeployRoleID)
	}

	provider := scope.OIDCProviderARN(cfg.Trust.ProviderURL)
	trustPolicy := policy.NewDocument()
	for _, s := range doc.Statement {
		if _, ok := s.Principal[policy.PrincipalFederated]; ok {
			s.Principal = map[string][]any{policy.PrincipalFederated: {provider}}
		}
		trustPolicy.Statement = append(trustPolicy.Statement, s)
	}

	p := cfg.Pipeline
	permissions := policy.Merge(
		trust.DeployerPolicy(trust.DeployTargets{
			Application:      scope.ApplicationARN(p.ApplicationName),
			DeploymentGroup:  scope.DeploymentGroupARN(p.ApplicationName, p.DeploymentGroupName),
			DeploymentConfig: scope.DeploymentConfigARN(p.DeploymentConfigName),
		}),
		artifacts.ReadWriteGrant(scope.BucketARN(bucket), scope.ObjectsARN(bucket)),
	)

	return trust.Role{
		ARN:         scope.RoleARN(name),
		ProviderARN: provider,
		Issuer:      cfg.Trust.ProviderURL,
		Audience:    cfg.Trust.Audience,
		TrustPolicy: trustPolicy,
		Permissions: permissions,
		MaxSession:  time.Duration(seconds) * time.Second,
	}, nil
}

func assume(ctx context.Context, issuer *trust.Issuer, v *trust.Verifier, audience, subject string) (*trust.Session, error) {
	token, err := issuer.Token(audience, subject, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	return v.AssumeRole(ctx, token)
}

func allowed(s *trust.Session, action, resource string) error {
	if !s.Allowed(action, resource) {
		return fmt.Errorf("%s on %s is not allowed", action, resource)
	}
	return nil
}

// ciSubject builds a subject matching pattern, with suffix appended to the
// repository name.
func ciSubject(pattern, suffix string) string {
	parts := strings.SplitN(pattern, ":", 3)
	if len(parts) < 3 {
		return pattern
	}
	ref := strings.NewReplacer("*", "ref:refs/heads/main", "?", "x").Replace(parts[2])
	return parts[0] + ":" + parts[1] + suffix + ":" + ref
}
