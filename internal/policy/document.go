package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Version is the policy language version written to every document.
const Version = "2012-10-17"

// Effect is the outcome a matching statement contributes.
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// Principal types.
const (
	PrincipalAWS       = "AWS"
	PrincipalFederated = "Federated"
	PrincipalService   = "Service"
)

// Document is an access policy. Values inside Principal and Resource may be
// plain strings or topology references that resolve at deploy time.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one rule of a document.
type Statement struct {
	Sid       string                         `json:"Sid,omitempty"`
	Effect    Effect                         `json:"Effect"`
	Principal map[string][]any               `json:"Principal,omitempty"`
	Action    []string                       `json:"Action"`
	Resource  []any                          `json:"Resource,omitempty"`
	Condition map[string]map[string][]string `json:"Condition,omitempty"`
}

// NewDocument returns a document with the current language version.
func NewDocument(statements ...Statement) Document {
	return Document{Version: Version, Statement: statements}
}

// Merge returns a document holding the statements of all inputs.
func Merge(docs ...Document) Document {
	out := NewDocument()
	for _, d := range docs {
		out.Statement = append(out.Statement, d.Statement...)
	}
	return out
}

// AnyPrincipal matches every caller.
func AnyPrincipal() map[string][]any {
	return map[string][]any{PrincipalAWS: {"*"}}
}

// ServiceTrust is the trust policy letting an AWS service such as
// ec2.amazonaws.com assume a role.
func ServiceTrust(service string) Document {
	return NewDocument(Statement{
		Effect:    Allow,
		Principal: map[string][]any{PrincipalService: {service}},
		Action:    []string{"sts:AssumeRole"},
	})
}

// References lists the logical IDs the document points at, so synthesis
// orders the document after them.
func (d Document) References() []string {
	var values []any
	for _, s := range d.Statement {
		for _, v := range s.Principal {
			values = append(values, v...)
		}
		values = append(values, s.Resource...)
	}
	return topology.CollectReferences(values)
}

// Validate rejects statements that cannot be evaluated.
func (d Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("unsupported policy version %q", d.Version)
	}
	for i, s := range d.Statement {
		if s.Effect != Allow && s.Effect != Deny {
			return fmt.Errorf("statement %d: invalid effect %q", i, s.Effect)
		}
		if len(s.Action) == 0 {
			return fmt.Errorf("statement %d: no action", i)
		}
		for op := range s.Condition {
			if _, _, err := parseOperator(op); err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
		}
	}
	return nil
}

// JSON renders the document.
func (d Document) JSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to render policy: %w", err)
	}
	return string(data), nil
}

// Parse reads a policy document as returned by provider APIs, where single
// values may appear as strings instead of lists and Principal may be "*".
func Parse(policyJSON string) (Document, error) {
	var raw struct {
		Version   string          `json:"Version"`
		Statement json.RawMessage `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(policyJSON), &raw); err != nil {
		return Document{}, fmt.Errorf("failed to parse policy: %w", err)
	}

	var stmts []map[string]any
	if len(raw.Statement) > 0 && raw.Statement[0] == '{' {
		var single map[string]any
		if err := json.Unmarshal(raw.Statement, &single); err != nil {
			return Document{}, fmt.Errorf("failed to parse statement: %w", err)
		}
		stmts = append(stmts, single)
	} else if len(raw.Statement) > 0 {
		if err := json.Unmarshal(raw.Statement, &stmts); err != nil {
			return Document{}, fmt.Errorf("failed to parse statements: %w", err)
		}
	}

	doc := Document{Version: raw.Version}
	for _, stmt := range stmts {
		s := Statement{
			Effect: Effect(stringValue(stmt["Effect"])),
			Action: normalizeToStringSlice(stmt["Action"]),
		}
		s.Sid = stringValue(stmt["Sid"])
		for _, r := range normalizeToStringSlice(stmt["Resource"]) {
			s.Resource = append(s.Resource, r)
		}
		s.Principal = parsePrincipal(stmt["Principal"])
		if cond, ok := stmt["Condition"].(map[string]any); ok {
			s.Condition = make(map[string]map[string][]string, len(cond))
			for op, body := range cond {
				keys, ok := body.(map[string]any)
				if !ok {
					continue
				}
				s.Condition[op] = make(map[string][]string, len(keys))
				for k, v := range keys {
					s.Condition[op][k] = normalizeToStringSlice(v)
				}
			}
		}
		doc.Statement = append(doc.Statement, s)
	}

	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func parsePrincipal(v any) map[string][]any {
	switch p := v.(type) {
	case string:
		if p == "*" {
			return AnyPrincipal()
		}
	case map[string]any:
		out := make(map[string][]any, len(p))
		for typ, val := range p {
			for _, s := range normalizeToStringSlice(val) {
				out[typ] = append(out[typ], s)
			}
		}
		return out
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// normalizeToStringSlice converts a string or list value to []string.
func normalizeToStringSlice(val any) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case bool:
		if v {
			return []string{"true"}
		}
		return []string{"false"}
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return v
	}
	return nil
}

// Actions returns every action allowed anywhere in the document, sorted.
func (d Document) Actions() []string {
	seen := make(map[string]bool)
	for _, s := range d.Statement {
		if s.Effect != Allow {
			continue
		}
		for _, a := range s.Action {
			seen[strings.ToLower(a)] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
