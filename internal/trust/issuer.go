package trust

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jws"
	"github.com/lestrrat-go/jwx/jwt"
)

// Issuer signs web identity tokens the way a CI provider does, with a key
// generated at creation.
type Issuer struct {
	url   string
	kid   string
	key   *rsa.PrivateKey
	clock clockwork.Clock
}

// NewIssuer creates an issuer for url.
func NewIssuer(url string, clock clockwork.Clock) (*Issuer, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Issuer{url: url, kid: "ci-1", key: key, clock: clock}, nil
}

// KeySet returns the issuer's public keys.
func (i *Issuer) KeySet() (*KeySet, error) {
	pub, err := jwk.New(&i.key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build public key: %w", err)
	}
	if err := pub.Set(jwk.KeyIDKey, i.kid); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	set.Add(pub)
	return NewKeySet(set), nil
}

// Token signs a token for subject that expires after ttl.
func (i *Issuer) Token(audience, subject string, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	tok := jwt.New()
	for k, v := range map[string]any{
		jwt.IssuerKey:     i.url,
		jwt.AudienceKey:   audience,
		jwt.SubjectKey:    subject,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(ttl),
	} {
		if err := tok.Set(k, v); err != nil {
			return "", fmt.Errorf("failed to set claim %s: %w", k, err)
		}
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, i.kid); err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwa.RS256, i.key, jwt.WithHeaders(hdrs))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}
