package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// ErrTrustViolation is returned for any token that does not satisfy the
// role's trust conditions. No session is issued.
var ErrTrustViolation = errors.New("trust violation")

// Role is the federated role a token may assume.
type Role struct {
	ARN         string
	ProviderARN string
	Issuer      string
	Audience    string
	TrustPolicy policy.Document
	Permissions policy.Document
	MaxSession  time.Duration
}

// Verifier checks CI tokens and issues sessions for one role.
type Verifier struct {
	role     Role
	host     string
	verifier *oidc.IDTokenVerifier
	clock    clockwork.Clock
}

// NewVerifier creates a verifier that checks token signatures with keys.
func NewVerifier(role Role, keys oidc.KeySet, clock clockwork.Clock) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{
		role: role,
		host: naming.OIDCHost(role.Issuer),
		verifier: oidc.NewVerifier(role.Issuer, keys, &oidc.Config{
			ClientID: role.Audience,
			Now:      clock.Now,
		}),
		clock: clock,
	}
}

// AssumeRole verifies the token and, when issuer, audience and subject all
// satisfy the trust policy, returns a session for the role.
func (v *Verifier) AssumeRole(ctx context.Context, rawToken string) (*Session, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("role", v.role.ARN)

	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		log.Info("Rejected federated token", "reason", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTrustViolation, err)
	}

	req := policy.Request{
		Principal: policy.Principal{Type: policy.PrincipalFederated, ID: v.role.ProviderARN},
		Action:    AssumeAction,
		Context: map[string][]string{
			v.host + ":aud": token.Audience,
			v.host + ":sub": {token.Subject},
			v.host + ":iss": {token.Issuer},
		},
	}
	if d := policy.Evaluate(req, v.role.TrustPolicy); d != policy.Allowed {
		log.Info("Rejected federated token", "subject", token.Subject, "decision", d.String())
		return nil, fmt.Errorf("%w: subject %q may not assume %s", ErrTrustViolation, token.Subject, v.role.ARN)
	}

	expiration := v.clock.Now().Add(v.role.MaxSession)
	log.Info("Issued session", "subject", token.Subject, "expiration", expiration)
	return &Session{
		RoleARN:     v.role.ARN,
		Subject:     token.Subject,
		Expiration:  expiration,
		permissions: v.role.Permissions,
		clock:       v.clock,
	}, nil
}

// Session is a short-lived grant of the role's permissions.
type Session struct {
	RoleARN    string
	Subject    string
	Expiration time.Time

	permissions policy.Document
	clock       clockwork.Clock
}

// Expired reports whether the session can no longer be used.
func (s *Session) Expired() bool {
	return !s.clock.Now().Before(s.Expiration)
}

// Policy returns the permissions attached to the session.
func (s *Session) Policy() policy.Document {
	return s.permissions
}

// Allowed reports whether the session may perform action on resource.
func (s *Session) Allowed(action, resource string) bool {
	if s.Expired() {
		return false
	}
	req := policy.Request{
		Principal: policy.Principal{Type: policy.PrincipalAWS, ID: s.RoleARN},
		Action:    action,
		Resource:  resource,
	}
	return policy.Evaluate(req, s.permissions) == policy.Allowed
}
