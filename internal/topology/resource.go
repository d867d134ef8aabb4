package topology

import (
	"encoding/json"
	"regexp"
	"sort"
)

// Component is the part of the stack a resource belongs to. Components are
// ranked; a resource may only reference resources of equal or lower rank.
type Component string

const (
	ComponentNetwork  Component = "network"
	ComponentEgress   Component = "egress"
	ComponentRouter   Component = "router"
	ComponentFleet    Component = "fleet"
	ComponentPipeline Component = "pipeline"
	ComponentTrust    Component = "trust"
	ComponentStore    Component = "store"
)

var componentRanks = map[Component]int{
	ComponentNetwork:  0,
	ComponentEgress:   1,
	ComponentRouter:   1,
	ComponentFleet:    1,
	ComponentPipeline: 2,
	ComponentTrust:    3,
	ComponentStore:    3,
}

// Rank returns the dependency rank of the component, or -1 if unknown.
func (c Component) Rank() int {
	if r, ok := componentRanks[c]; ok {
		return r
	}
	return -1
}

// Deletion policies.
const (
	DeletionDelete = "Delete"
	DeletionRetain = "Retain"
)

// Resource is one node of the resource graph.
type Resource struct {
	LogicalID      string
	Type           string
	Component      Component
	Properties     map[string]any
	DependsOn      []string
	DeletionPolicy string
}

// Reference points at another resource: its primary identifier when
// Attribute is empty, otherwise one of its attributes.
type Reference struct {
	LogicalID string
	Attribute string
}

// Ref references the primary identifier of a resource.
func Ref(logicalID string) Reference {
	return Reference{LogicalID: logicalID}
}

// GetAtt references an attribute of a resource.
func GetAtt(logicalID, attribute string) Reference {
	return Reference{LogicalID: logicalID, Attribute: attribute}
}

// MarshalJSON renders the reference as a CloudFormation intrinsic.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.Attribute == "" {
		return json.Marshal(map[string]string{"Ref": r.LogicalID})
	}
	return json.Marshal(map[string][]string{"Fn::GetAtt": {r.LogicalID, r.Attribute}})
}

// Join concatenates values with a separator at deploy time.
type Join struct {
	Separator string
	Values    []any
}

// MarshalJSON renders Fn::Join.
func (j Join) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]any{"Fn::Join": {j.Separator, j.Values}})
}

// Sub is a template string with ${LogicalID} and ${LogicalID.Attr}
// placeholders and pseudo parameters such as ${AWS::Region}.
type Sub string

// MarshalJSON renders Fn::Sub.
func (s Sub) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"Fn::Sub": string(s)})
}

// Base64 encodes its value at deploy time.
type Base64 struct {
	Value any
}

// MarshalJSON renders Fn::Base64.
func (b Base64) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"Fn::Base64": b.Value})
}

var subPlaceholder = regexp.MustCompile(`\$\{([A-Za-z0-9]+)(\.[A-Za-z0-9.]+)?\}`)

// references collects the logical IDs a value refers to, sorted and unique.
func references(v any) []string {
	seen := make(map[string]bool)
	walk(v, seen)
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func walk(v any, seen map[string]bool) {
	switch val := v.(type) {
	case Reference:
		seen[val.LogicalID] = true
	case *Reference:
		seen[val.LogicalID] = true
	case Join:
		for _, item := range val.Values {
			walk(item, seen)
		}
	case Sub:
		for _, m := range subPlaceholder.FindAllStringSubmatch(string(val), -1) {
			seen[m[1]] = true
		}
	case Base64:
		walk(val.Value, seen)
	case map[string]any:
		for _, item := range val {
			walk(item, seen)
		}
	case []any:
		for _, item := range val {
			walk(item, seen)
		}
	case []map[string]any:
		for _, item := range val {
			walk(item, seen)
		}
	case []Reference:
		for _, item := range val {
			seen[item.LogicalID] = true
		}
	case Referencer:
		for _, id := range val.References() {
			seen[id] = true
		}
	}
}

// Referencer is implemented by property values that embed references in a
// custom shape.
type Referencer interface {
	References() []string
}

// CollectReferences returns the logical IDs referenced anywhere in v.
func CollectReferences(v any) []string {
	return references(v)
}

// cloneValue deep-copies the generic containers of a property tree.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item).(map[string]any)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case Join:
		vals := make([]any, len(val.Values))
		for i, item := range val.Values {
			vals[i] = cloneValue(item)
		}
		return Join{Separator: val.Separator, Values: vals}
	default:
		return v
	}
}

func (r Resource) clone() Resource {
	out := r
	if r.Properties != nil {
		out.Properties = cloneValue(r.Properties).(map[string]any)
	}
	out.DependsOn = append([]string(nil), r.DependsOn...)
	return out
}
