package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

var scope = naming.NewScope("us-east-1", "123456789012")

func newStore(t *testing.T, enc Encryption, versioned bool) *Store {
	t.Helper()
	s, err := NewStore(Bucket{
		Name:       "releases",
		ARN:        scope.BucketARN("releases"),
		Encryption: enc,
		Versioned:  versioned,
		Policy:     BucketPolicy(scope.BucketARN("releases"), scope.ObjectsARN("releases"), enc),
	})
	require.NoError(t, err)
	return s
}

func ciRequest(key string) Request {
	return Request{
		Principal:       policy.Principal{Type: policy.PrincipalAWS, ID: scope.RoleARN("ci-deploy")},
		Identity:        ReadWriteGrant(scope.BucketARN("releases"), scope.ObjectsARN("releases")),
		Key:             key,
		SecureTransport: true,
	}
}

func fleetRequest(key string) Request {
	return Request{
		Principal:       policy.Principal{Type: policy.PrincipalAWS, ID: scope.RoleARN("fleet")},
		Identity:        ReadGrant(scope.BucketARN("releases"), scope.ObjectsARN("releases")),
		Key:             key,
		SecureTransport: true,
	}
}

func TestStore_PublicAccessIsAlwaysBlocked(t *testing.T) {
	t.Parallel()

	s := newStore(t, EncryptionS3Managed, false)
	assert.Equal(t, BlockAll(), s.PublicAccess())

	for _, acl := range []ACL{ACLPublicRead, ACLPublicReadWrite, ACLAuthenticatedRead} {
		req := ciRequest("app.zip")
		req.ACL = acl
		_, err := s.Put(req, []byte("zip"))
		assert.ErrorIs(t, err, ErrPublicAccessBlocked, string(acl))

		req.Action = "s3:PutObjectAcl"
		assert.ErrorIs(t, s.Authorize(req), ErrPublicAccessBlocked)
	}

	public := policy.NewDocument(policy.Statement{
		Effect:    policy.Allow,
		Principal: policy.AnyPrincipal(),
		Action:    []string{"s3:GetObject"},
		Resource:  []any{scope.ObjectsARN("releases")},
	})
	req := ciRequest("")
	req.Action = "s3:PutBucketPolicy"
	req.NewPolicy = &public
	assert.ErrorIs(t, s.Authorize(req), ErrPublicAccessBlocked)
	assert.Empty(t, s.Keys())
}

func TestStore_RejectsInsecureTransport(t *testing.T) {
	t.Parallel()

	s := newStore(t, EncryptionS3Managed, false)
	_, err := s.Put(ciRequest("app.zip"), []byte("v1"))
	require.NoError(t, err)

	insecure := ciRequest("app.zip")
	insecure.SecureTransport = false
	_, err = s.Get(insecure)
	assert.ErrorIs(t, err, ErrInsecureTransport)
	_, err = s.Put(insecure, []byte("v2"))
	assert.ErrorIs(t, err, ErrInsecureTransport)

	list := ciRequest("")
	list.SecureTransport = false
	list.Action = "s3:ListBucket"
	assert.ErrorIs(t, s.Authorize(list), ErrInsecureTransport)
}

func TestStore_ObjectsAreEncrypted(t *testing.T) {
	t.Parallel()

	s := newStore(t, EncryptionKMS, false)
	obj, err := s.Put(ciRequest("app.zip"), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, EncryptionKMS, obj.Encryption)
	assert.Equal(t, "321c3cf486ed509164edec1e1981fec8", obj.ETag)

	explicit := ciRequest("other.zip")
	explicit.Encryption = EncryptionKMS
	_, err = s.Put(explicit, []byte("x"))
	require.NoError(t, err)

	wrong := ciRequest("bad.zip")
	wrong.Encryption = EncryptionS3Managed
	_, err = s.Put(wrong, []byte("x"))
	assert.ErrorIs(t, err, ErrEncryptionMismatch)
}

func TestStore_Grants(t *testing.T) {
	t.Parallel()

	s := newStore(t, EncryptionS3Managed, true)
	_, err := s.Put(ciRequest("app.zip"), []byte("v1"))
	require.NoError(t, err)
	obj, err := s.Put(ciRequest("app.zip"), []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, "2", obj.VersionID)
	assert.Equal(t, 2, s.Versions("app.zip"))

	got, err := s.Get(fleetRequest("app.zip"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Body)

	_, err = s.Put(fleetRequest("app.zip"), []byte("v3"))
	assert.ErrorIs(t, err, ErrAccessDenied, "fleet role is read-only")

	stranger := fleetRequest("app.zip")
	stranger.Identity = policy.NewDocument()
	_, err = s.Get(stranger)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = s.Get(fleetRequest("missing.zip"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBucketFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.ArtifactStore.BucketName = "demo-releases"
	cfg.ArtifactStore.Encryption = config.EncryptionKMS
	cfg.ArtifactStore.KMSKeyAlias = "alias/releases"
	cfg.ArtifactStore.Versioned = true

	b := BucketFromConfig(cfg, scope)
	assert.Equal(t, "arn:aws:s3:::demo-releases", b.ARN)
	assert.Equal(t, EncryptionKMS, b.Encryption)
	assert.Equal(t, "arn:aws:kms:us-east-1:123456789012:alias/releases", b.KMSKeyARN)
	require.NoError(t, b.Policy.Validate())

	_, err := NewStore(b)
	require.NoError(t, err)
}

func TestNewStore_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewStore(Bucket{})
	assert.Error(t, err)
	_, err = NewStore(Bucket{Name: "b", ARN: "arn:aws:s3:::b", Encryption: "none"})
	assert.Error(t, err)
}

func TestKMSGrant(t *testing.T) {
	t.Parallel()

	doc := KMSGrant("arn:aws:kms:us-east-1:1:key/abc", "us-east-1", true)
	req := policy.Request{
		Action:   "kms:GenerateDataKey",
		Resource: "arn:aws:kms:us-east-1:1:key/abc",
		Context:  map[string][]string{"kms:ViaService": {"s3.us-east-1.amazonaws.com"}},
	}
	assert.Equal(t, policy.Allowed, policy.Evaluate(req, doc))

	req.Context["kms:ViaService"] = []string{"ec2.us-east-1.amazonaws.com"}
	assert.Equal(t, policy.ImplicitDeny, policy.Evaluate(req, doc))

	readOnly := KMSGrant("arn:aws:kms:us-east-1:1:key/abc", "us-east-1", false)
	assert.Equal(t, []string{"kms:decrypt"}, readOnly.Actions())
}
