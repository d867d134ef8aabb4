package policy

import (
	"fmt"
	"strings"
)

// Decision is the result of evaluating a request against documents.
type Decision int

const (
	// ImplicitDeny means no statement allowed the request.
	ImplicitDeny Decision = iota
	Allowed
	// ExplicitDeny means a Deny statement matched. It overrides any Allow.
	ExplicitDeny
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allow"
	case ExplicitDeny:
		return "explicit-deny"
	default:
		return "implicit-deny"
	}
}

// Principal identifies the caller of a request.
type Principal struct {
	Type string
	ID   string
}

// Request is an access attempt. Context carries condition keys such as
// aws:SecureTransport. Keys are compared case-insensitively.
type Request struct {
	Principal Principal
	Action    string
	Resource  string
	Context   map[string][]string
}

// Evaluate decides a request against all documents together. A matching Deny
// anywhere wins; otherwise a matching Allow grants; otherwise the request is
// implicitly denied.
func Evaluate(req Request, docs ...Document) Decision {
	decision := ImplicitDeny
	for _, doc := range docs {
		for _, s := range doc.Statement {
			if !s.Matches(req) {
				continue
			}
			if s.Effect == Deny {
				return ExplicitDeny
			}
			if s.Effect == Allow {
				decision = Allowed
			}
		}
	}
	return decision
}

// Matches reports whether the statement applies to the request, ignoring its
// effect.
func (s Statement) Matches(req Request) bool {
	return s.matchesPrincipal(req.Principal) &&
		s.matchesAction(req.Action) &&
		s.matchesResource(req.Resource) &&
		s.matchesConditions(req.Context)
}

// matchesPrincipal treats a statement without Principal as an identity
// policy statement, which applies to whoever holds it.
func (s Statement) matchesPrincipal(p Principal) bool {
	if len(s.Principal) == 0 {
		return true
	}
	for _, v := range s.Principal[PrincipalAWS] {
		if v == "*" {
			return true
		}
	}
	for _, v := range s.Principal[p.Type] {
		if str, ok := v.(string); ok && MatchLike(str, p.ID) {
			return true
		}
	}
	return false
}

func (s Statement) matchesAction(action string) bool {
	for _, a := range s.Action {
		if matchFold(a, action) {
			return true
		}
	}
	return false
}

func (s Statement) matchesResource(resource string) bool {
	if len(s.Resource) == 0 {
		return true
	}
	for _, r := range s.Resource {
		if str, ok := r.(string); ok && MatchLike(str, resource) {
			return true
		}
	}
	return false
}

func (s Statement) matchesConditions(ctx map[string][]string) bool {
	for op, keys := range s.Condition {
		o, err := newOperator(op)
		if err != nil {
			return false
		}
		for key, want := range keys {
			got, present := lookupKey(ctx, key)
			if !o.eval(got, present, want) {
				return false
			}
		}
	}
	return true
}

// lookupKey finds a condition key ignoring case.
func lookupKey(ctx map[string][]string, key string) ([]string, bool) {
	if v, ok := ctx[key]; ok {
		return v, true
	}
	for k, v := range ctx {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

type setQualifier int

const (
	qualifierNone setQualifier = iota
	qualifierAnyValue
	qualifierAllValues
)

type operator struct {
	base      string
	qualifier setQualifier
	ifExists  bool
}

var baseOperators = map[string]func(got, want string) bool{
	"StringEquals":              func(g, w string) bool { return g == w },
	"StringNotEquals":           func(g, w string) bool { return g == w },
	"StringEqualsIgnoreCase":    strings.EqualFold,
	"StringNotEqualsIgnoreCase": strings.EqualFold,
	"StringLike":                func(g, w string) bool { return MatchLike(w, g) },
	"StringNotLike":             func(g, w string) bool { return MatchLike(w, g) },
	"ArnEquals":                 func(g, w string) bool { return g == w },
	"ArnNotEquals":              func(g, w string) bool { return g == w },
	"ArnLike":                   func(g, w string) bool { return MatchLike(w, g) },
	"ArnNotLike":                func(g, w string) bool { return MatchLike(w, g) },
	"Bool":                      strings.EqualFold,
}

func parseOperator(name string) (string, setQualifier, error) {
	q := qualifierNone
	switch {
	case strings.HasPrefix(name, "ForAnyValue:"):
		q = qualifierAnyValue
		name = strings.TrimPrefix(name, "ForAnyValue:")
	case strings.HasPrefix(name, "ForAllValues:"):
		q = qualifierAllValues
		name = strings.TrimPrefix(name, "ForAllValues:")
	}
	base := strings.TrimSuffix(name, "IfExists")
	if base == "Null" {
		if name != base || q != qualifierNone {
			return "", q, fmt.Errorf("unsupported condition operator %q", name)
		}
		return base, q, nil
	}
	if _, ok := baseOperators[base]; !ok {
		return "", q, fmt.Errorf("unsupported condition operator %q", name)
	}
	return name, q, nil
}

func newOperator(name string) (operator, error) {
	n, q, err := parseOperator(name)
	if err != nil {
		return operator{}, err
	}
	base := strings.TrimSuffix(n, "IfExists")
	return operator{base: base, qualifier: q, ifExists: base != n}, nil
}

func (o operator) negated() bool {
	return strings.Contains(o.base, "Not")
}

func (o operator) eval(got []string, present bool, want []string) bool {
	if o.base == "Null" {
		// Null:true asserts the key is absent.
		for _, w := range want {
			if strings.EqualFold(w, "true") == present {
				return false
			}
		}
		return true
	}

	if !present {
		if o.ifExists || o.negated() {
			return true
		}
		return o.qualifier == qualifierAllValues
	}

	cmpFn := baseOperators[o.base]
	matchesAny := func(g string) bool {
		for _, w := range want {
			if cmpFn(g, w) {
				return true
			}
		}
		return false
	}

	if o.qualifier == qualifierAllValues {
		for _, g := range got {
			if matchesAny(g) == o.negated() {
				return false
			}
		}
		return true
	}

	matched := false
	for _, g := range got {
		if matchesAny(g) {
			matched = true
			break
		}
	}
	return matched != o.negated()
}
