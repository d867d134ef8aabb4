package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketArn = "arn:aws:s3:::releases"

func bucketPolicy() Document {
	return NewDocument(
		Statement{
			Sid:       "DenyInsecureTransport",
			Effect:    Deny,
			Principal: AnyPrincipal(),
			Action:    []string{"s3:*"},
			Resource:  []any{bucketArn, bucketArn + "/*"},
			Condition: map[string]map[string][]string{
				"Bool": {"aws:SecureTransport": {"false"}},
			},
		},
		Statement{
			Sid:       "DenyWrongEncryption",
			Effect:    Deny,
			Principal: AnyPrincipal(),
			Action:    []string{"s3:PutObject"},
			Resource:  []any{bucketArn + "/*"},
			Condition: map[string]map[string][]string{
				"Null":            {"s3:x-amz-server-side-encryption": {"false"}},
				"StringNotEquals": {"s3:x-amz-server-side-encryption": {"aws:kms"}},
			},
		},
	)
}

func readGrant() Document {
	return NewDocument(Statement{
		Effect:   Allow,
		Action:   []string{"s3:GetObject", "s3:List*"},
		Resource: []any{bucketArn, bucketArn + "/*"},
	})
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	secure := map[string][]string{"aws:SecureTransport": {"true"}}
	insecure := map[string][]string{"aws:securetransport": {"false"}}

	tests := []struct {
		name string
		req  Request
		want Decision
	}{
		{
			name: "granted read over TLS",
			req:  Request{Action: "s3:GetObject", Resource: bucketArn + "/app.zip", Context: secure},
			want: Allowed,
		},
		{
			name: "action match ignores case",
			req:  Request{Action: "S3:LISTBUCKET", Resource: bucketArn, Context: secure},
			want: Allowed,
		},
		{
			name: "insecure transport is denied even when granted",
			req:  Request{Action: "s3:GetObject", Resource: bucketArn + "/app.zip", Context: insecure},
			want: ExplicitDeny,
		},
		{
			name: "ungranted action",
			req:  Request{Action: "s3:DeleteObject", Resource: bucketArn + "/app.zip", Context: secure},
			want: ImplicitDeny,
		},
		{
			name: "resource match is case sensitive",
			req:  Request{Action: "s3:GetObject", Resource: "arn:aws:s3:::RELEASES/app.zip", Context: secure},
			want: ImplicitDeny,
		},
		{
			name: "wrong encryption header",
			req: Request{Action: "s3:PutObject", Resource: bucketArn + "/app.zip", Context: map[string][]string{
				"aws:SecureTransport":             {"true"},
				"s3:x-amz-server-side-encryption": {"AES256"},
			}},
			want: ExplicitDeny,
		},
		{
			name: "missing encryption header falls through to grants",
			req:  Request{Action: "s3:PutObject", Resource: bucketArn + "/app.zip", Context: secure},
			want: ImplicitDeny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Evaluate(tt.req, bucketPolicy(), readGrant()))
		})
	}
}

func TestEvaluate_FederatedPrincipal(t *testing.T) {
	t.Parallel()

	provider := "arn:aws:iam::123456789012:oidc-provider/token.actions.githubusercontent.com"
	trust := NewDocument(Statement{
		Effect:    Allow,
		Principal: map[string][]any{PrincipalFederated: {provider}},
		Action:    []string{"sts:AssumeRoleWithWebIdentity"},
		Condition: map[string]map[string][]string{
			"StringEquals": {"token.actions.githubusercontent.com:aud": {"sts.amazonaws.com"}},
			"StringLike":   {"token.actions.githubusercontent.com:sub": {"repo:acme/app:*"}},
		},
	})

	req := func(sub string) Request {
		return Request{
			Principal: Principal{Type: PrincipalFederated, ID: provider},
			Action:    "sts:AssumeRoleWithWebIdentity",
			Context: map[string][]string{
				"token.actions.githubusercontent.com:aud": {"sts.amazonaws.com"},
				"token.actions.githubusercontent.com:sub": {sub},
			},
		}
	}

	assert.Equal(t, Allowed, Evaluate(req("repo:acme/app:ref:refs/heads/main"), trust))
	assert.Equal(t, ImplicitDeny, Evaluate(req("repo:acme/other:ref:refs/heads/main"), trust))

	other := req("repo:acme/app:ref:refs/heads/main")
	other.Principal = Principal{Type: PrincipalAWS, ID: "arn:aws:iam::123456789012:root"}
	assert.Equal(t, ImplicitDeny, Evaluate(other, trust))
}

func TestOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op      string
		got     []string
		present bool
		want    []string
		result  bool
	}{
		{"StringEquals", []string{"a"}, true, []string{"a", "b"}, true},
		{"StringEquals", nil, false, []string{"a"}, false},
		{"StringEqualsIfExists", nil, false, []string{"a"}, true},
		{"StringNotEquals", []string{"a"}, true, []string{"a"}, false},
		{"StringNotEquals", nil, false, []string{"a"}, true},
		{"StringEqualsIgnoreCase", []string{"ABC"}, true, []string{"abc"}, true},
		{"StringLike", []string{"repo:x/y:ref"}, true, []string{"repo:x/*"}, true},
		{"StringNotLike", []string{"repo:x/y"}, true, []string{"repo:z/*"}, true},
		{"Bool", []string{"False"}, true, []string{"false"}, true},
		{"Null", nil, false, []string{"true"}, true},
		{"Null", []string{"v"}, true, []string{"true"}, false},
		{"Null", []string{"v"}, true, []string{"false"}, true},
		{"ForAnyValue:StringEquals", []string{"x", "a"}, true, []string{"a"}, true},
		{"ForAllValues:StringEquals", []string{"x", "a"}, true, []string{"a"}, false},
		{"ForAllValues:StringEquals", nil, false, []string{"a"}, true},
		{"ArnLike", []string{"arn:aws:iam::1:role/x"}, true, []string{"arn:aws:iam::*:role/*"}, true},
	}

	for _, tt := range tests {
		o, err := newOperator(tt.op)
		require.NoError(t, err, tt.op)
		assert.Equal(t, tt.result, o.eval(tt.got, tt.present, tt.want), "%s %v", tt.op, tt.got)
	}

	_, err := newOperator("NumericLessThan")
	assert.Error(t, err)
	_, err = newOperator("NullIfExists")
	assert.Error(t, err)
}

func TestMatchLike(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchLike("*", "anything"))
	assert.True(t, MatchLike("arn:aws:s3:::bucket/*", "arn:aws:s3:::bucket/a/b.zip"))
	assert.True(t, MatchLike("file-?.zip", "file-1.zip"))
	assert.False(t, MatchLike("file-?.zip", "file-12.zip"))
	assert.True(t, MatchLike("a[1]{x}*", "a[1]{x}yz"))
	assert.False(t, MatchLike("a[1]*", "a1b"))
	assert.True(t, MatchLike("exact", "exact"))
	assert.False(t, MatchLike("exact", "Exact"))
}

func TestDocument_Parse(t *testing.T) {
	t.Parallel()

	doc, err := Parse(`{
		"Version": "2012-10-17",
		"Statement": {
			"Effect": "Deny",
			"Principal": "*",
			"Action": "s3:*",
			"Resource": ["arn:aws:s3:::releases", "arn:aws:s3:::releases/*"],
			"Condition": {"Bool": {"aws:SecureTransport": false}}
		}
	}`)
	require.NoError(t, err)
	require.Len(t, doc.Statement, 1)
	s := doc.Statement[0]
	assert.Equal(t, Deny, s.Effect)
	assert.Equal(t, []string{"s3:*"}, s.Action)
	assert.Equal(t, []string{"false"}, s.Condition["Bool"]["aws:SecureTransport"])
	assert.Equal(t, AnyPrincipal(), s.Principal)

	req := Request{Action: "s3:GetObject", Resource: "arn:aws:s3:::releases/x", Context: map[string][]string{"aws:SecureTransport": {"false"}}}
	assert.Equal(t, ExplicitDeny, Evaluate(req, doc))

	_, err = Parse(`{"Version": "2008-10-17", "Statement": []}`)
	assert.Error(t, err)
	_, err = Parse(`{"Version": "2012-10-17", "Statement": [{"Effect": "Maybe", "Action": "s3:*"}]}`)
	assert.Error(t, err)
	_, err = Parse(`not json`)
	assert.Error(t, err)
}

func TestDocument_RoundTripAndReferences(t *testing.T) {
	t.Parallel()

	doc := bucketPolicy()
	require.NoError(t, doc.Validate())
	out, err := doc.JSON()
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	assert.Len(t, parsed.Statement, 2)

	assert.Equal(t, []string{"s3:getobject", "s3:list*"}, Merge(doc, readGrant()).Actions())
	assert.Empty(t, doc.References())
}

func TestServiceTrust(t *testing.T) {
	t.Parallel()

	doc := ServiceTrust("ec2.amazonaws.com")
	require.NoError(t, doc.Validate())

	ec2 := Request{Principal: Principal{Type: PrincipalService, ID: "ec2.amazonaws.com"}, Action: "sts:AssumeRole"}
	assert.Equal(t, Allowed, Evaluate(ec2, doc))

	lambda := Request{Principal: Principal{Type: PrincipalService, ID: "lambda.amazonaws.com"}, Action: "sts:AssumeRole"}
	assert.Equal(t, ImplicitDeny, Evaluate(lambda, doc))
}
