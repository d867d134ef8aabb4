package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jws"
)

// KeySet verifies token signatures against a JSON Web Key Set.
type KeySet struct {
	set jwk.Set
}

// NewKeySet wraps an existing key set.
func NewKeySet(set jwk.Set) *KeySet {
	return &KeySet{set: set}
}

// ParseKeySet reads a JWKS document.
func ParseKeySet(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}
	return NewKeySet(set), nil
}

// FetchKeySet downloads a JWKS document.
func FetchKeySet(ctx context.Context, url string) (*KeySet, error) {
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set from %s: %w", url, err)
	}
	return NewKeySet(set), nil
}

// Discover resolves the issuer's signing keys through its OpenID
// configuration document.
func Discover(ctx context.Context, issuer string) (*KeySet, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover issuer %s: %w", issuer, err)
	}
	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("failed to read discovery document: %w", err)
	}
	if meta.JWKSURI == "" {
		return nil, errors.New("discovery document has no jwks_uri")
	}
	return FetchKeySet(ctx, meta.JWKSURI)
}

// Len returns the number of keys.
func (k *KeySet) Len() int {
	return k.set.Len()
}

// VerifySignature implements oidc.KeySet. The key is selected by the
// token's key ID.
func (k *KeySet) VerifySignature(_ context.Context, token string) ([]byte, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return nil, fmt.Errorf("expected one signature, got %d", len(sigs))
	}
	hdr := sigs[0].ProtectedHeaders()

	key, ok := k.set.LookupKeyID(hdr.KeyID())
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", hdr.KeyID())
	}
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to load signing key %q: %w", hdr.KeyID(), err)
	}
	payload, err := jws.Verify([]byte(token), hdr.Algorithm(), raw)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	return payload, nil
}

var _ oidc.KeySet = (*KeySet)(nil)
