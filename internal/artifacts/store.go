package artifacts

import (
	"crypto/md5" //nolint:gosec // S3 ETags are MD5 digests
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/policy"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// Encryption is a server-side encryption mode as sent in the
// x-amz-server-side-encryption header.
type Encryption string

const (
	EncryptionS3Managed Encryption = "AES256"
	EncryptionKMS       Encryption = "aws:kms"
)

// EncryptionFromConfig maps the configured mode to its header value.
func EncryptionFromConfig(mode string) Encryption {
	if mode == config.EncryptionKMS {
		return EncryptionKMS
	}
	return EncryptionS3Managed
}

// ACL is a canned access control list.
type ACL string

const (
	ACLPrivate           ACL = "private"
	ACLPublicRead        ACL = "public-read"
	ACLPublicReadWrite   ACL = "public-read-write"
	ACLAuthenticatedRead ACL = "authenticated-read"
)

// Public reports whether the ACL grants access outside the account.
func (a ACL) Public() bool {
	return a == ACLPublicRead || a == ACLPublicReadWrite || a == ACLAuthenticatedRead
}

var (
	ErrPublicAccessBlocked = errors.New("public access is blocked")
	ErrInsecureTransport   = errors.New("request must use TLS")
	ErrEncryptionMismatch  = errors.New("requested encryption does not match the bucket")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("no such key")
)

// PublicAccessBlock mirrors the four bucket-level public access settings.
type PublicAccessBlock struct {
	BlockPublicAcls       bool
	IgnorePublicAcls      bool
	BlockPublicPolicy     bool
	RestrictPublicBuckets bool
}

// BlockAll returns a block with every flag set.
func BlockAll() PublicAccessBlock {
	return PublicAccessBlock{true, true, true, true}
}

// Bucket describes the store.
type Bucket struct {
	Name       string
	ARN        string
	Encryption Encryption
	KMSKeyARN  string
	Versioned  bool
	Policy     policy.Document
}

// BucketFromConfig builds the bucket description for a stack.
func BucketFromConfig(cfg *config.Config, scope naming.Scope) Bucket {
	name := cfg.ArtifactStore.BucketName
	enc := EncryptionFromConfig(cfg.ArtifactStore.Encryption)
	b := Bucket{
		Name:       name,
		ARN:        scope.BucketARN(name),
		Encryption: enc,
		Versioned:  cfg.ArtifactStore.Versioned,
		Policy:     BucketPolicy(scope.BucketARN(name), scope.ObjectsARN(name), enc),
	}
	if enc == EncryptionKMS {
		b.KMSKeyARN = scope.KMSAliasARN(cfg.ArtifactStore.KMSKeyAlias)
	}
	return b
}

// Request is one call against the store.
type Request struct {
	Principal policy.Principal
	// Identity is the caller's own permission policy.
	Identity        policy.Document
	Action          string
	Key             string
	SecureTransport bool
	ACL             ACL
	// Encryption is the requested mode; empty means the bucket default.
	Encryption Encryption
	// NewPolicy is set for s3:PutBucketPolicy.
	NewPolicy *policy.Document
}

// Object is a stored artifact.
type Object struct {
	Key        string
	VersionID  string
	ETag       string
	Encryption Encryption
	KMSKeyARN  string
	Body       []byte
}

// Store is an in-memory artifact bucket that enforces the bucket's access
// rules.
type Store struct {
	bucket Bucket
	block  PublicAccessBlock

	mu      sync.Mutex
	objects map[string][]Object
}

// NewStore creates an empty store. Public access is always fully blocked.
func NewStore(bucket Bucket) (*Store, error) {
	if bucket.Name == "" || bucket.ARN == "" {
		return nil, errors.New("bucket name and ARN are required")
	}
	if bucket.Encryption != EncryptionS3Managed && bucket.Encryption != EncryptionKMS {
		return nil, fmt.Errorf("unsupported encryption %q", bucket.Encryption)
	}
	if err := bucket.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bucket policy: %w", err)
	}
	return &Store{bucket: bucket, block: BlockAll(), objects: make(map[string][]Object)}, nil
}

// Bucket returns the bucket description.
func (s *Store) Bucket() Bucket { return s.bucket }

// PublicAccess returns the public access block.
func (s *Store) PublicAccess() PublicAccessBlock { return s.block }

// Authorize decides a request. Public ACLs and public policies are refused
// first, then the bucket policy's explicit denies apply, and finally the
// caller's identity policy must allow the action.
func (s *Store) Authorize(req Request) error {
	if req.ACL.Public() && s.block.BlockPublicAcls {
		return fmt.Errorf("%w: canned ACL %q", ErrPublicAccessBlocked, req.ACL)
	}
	if req.NewPolicy != nil && s.block.BlockPublicPolicy && grantsPublic(*req.NewPolicy) {
		return fmt.Errorf("%w: policy grants access to everyone", ErrPublicAccessBlocked)
	}

	resource := s.bucket.ARN
	if req.Key != "" {
		resource += "/" + req.Key
	}
	ctx := map[string][]string{SecureTransportKey: {strconv.FormatBool(req.SecureTransport)}}
	if req.Encryption != "" {
		ctx[EncryptionKey] = []string{string(req.Encryption)}
	}
	preq := policy.Request{Principal: req.Principal, Action: req.Action, Resource: resource, Context: ctx}

	switch policy.Evaluate(preq, s.bucket.Policy, req.Identity) {
	case policy.Allowed:
		return nil
	case policy.ExplicitDeny:
		if !req.SecureTransport {
			return fmt.Errorf("%w: %s %s", ErrInsecureTransport, req.Action, resource)
		}
		if req.Encryption != "" && req.Encryption != s.bucket.Encryption {
			return fmt.Errorf("%w: got %s, bucket uses %s", ErrEncryptionMismatch, req.Encryption, s.bucket.Encryption)
		}
		return fmt.Errorf("%w: %s %s denied by bucket policy", ErrAccessDenied, req.Action, resource)
	default:
		return fmt.Errorf("%w: %s %s", ErrAccessDenied, req.Action, resource)
	}
}

// grantsPublic reports whether a policy allows any principal in.
func grantsPublic(doc policy.Document) bool {
	for _, st := range doc.Statement {
		if st.Effect != policy.Allow {
			continue
		}
		for _, v := range st.Principal[policy.PrincipalAWS] {
			if v == "*" {
				return true
			}
		}
	}
	return false
}

// Put stores an object. The object is encrypted with the bucket's mode
// regardless of whether the request named one.
func (s *Store) Put(req Request, body []byte) (Object, error) {
	req.Action = "s3:PutObject"
	if req.Key == "" {
		return Object{}, errors.New("object key is required")
	}
	if err := s.Authorize(req); err != nil {
		return Object{}, err
	}

	sum := md5.Sum(body) //nolint:gosec // S3 ETags are MD5 digests
	obj := Object{
		Key:        req.Key,
		ETag:       hex.EncodeToString(sum[:]),
		Encryption: s.bucket.Encryption,
		KMSKeyARN:  s.bucket.KMSKeyARN,
		Body:       append([]byte(nil), body...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.objects[req.Key]
	if s.bucket.Versioned {
		obj.VersionID = strconv.Itoa(len(versions) + 1)
		s.objects[req.Key] = append(versions, obj)
	} else {
		obj.VersionID = "null"
		s.objects[req.Key] = []Object{obj}
	}
	return obj, nil
}

// Get returns the latest version of an object.
func (s *Store) Get(req Request) (Object, error) {
	req.Action = "s3:GetObject"
	if err := s.Authorize(req); err != nil {
		return Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.objects[req.Key]
	if len(versions) == 0 {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, req.Key)
	}
	return versions[len(versions)-1], nil
}

// Versions returns the number of stored versions of a key.
func (s *Store) Versions(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects[key])
}

// Keys returns the stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
