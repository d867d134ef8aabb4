package labels

import "sort"

// Standard tag keys for stack resources.
const (
	// KeyStack identifies which stack a resource belongs to
	KeyStack = "cdk-example.io/stack"

	// KeyComponent identifies the topology component (network, fleet, ...)
	KeyComponent = "cdk-example.io/component"

	// KeyTier identifies the subnet tier of a network resource
	KeyTier = "cdk-example.io/tier"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "cdk-example.io/managed-by"

	// KeyName is the console display name.
	KeyName = "Name"
)

// ManagedBy values
const (
	ManagedByCDKExample = "cdk-example"
)

// TagBuilder provides a fluent interface for building resource tags.
type TagBuilder struct {
	tags map[string]string
}

// NewTagBuilder creates a new tag builder with the stack name pre-set.
func NewTagBuilder(stackName string) *TagBuilder {
	return &TagBuilder{
		tags: map[string]string{
			KeyStack:     stackName,
			KeyManagedBy: ManagedByCDKExample,
		},
	}
}

// WithComponent adds a component tag.
func (tb *TagBuilder) WithComponent(component string) *TagBuilder {
	tb.tags[KeyComponent] = component
	return tb
}

// WithTier adds a tier tag (only used on subnets and route tables).
func (tb *TagBuilder) WithTier(tier string) *TagBuilder {
	tb.tags[KeyTier] = tier
	return tb
}

// WithName sets the display name.
func (tb *TagBuilder) WithName(name string) *TagBuilder {
	tb.tags[KeyName] = name
	return tb
}

// Merge adds user tags. Reserved keys set by the builder win.
func (tb *TagBuilder) Merge(extra map[string]string) *TagBuilder {
	for k, v := range extra {
		if _, reserved := tb.tags[k]; reserved && k != KeyName {
			continue
		}
		tb.tags[k] = v
	}
	return tb
}

// Map returns a copy of the tags.
func (tb *TagBuilder) Map() map[string]string {
	result := make(map[string]string, len(tb.tags))
	for k, v := range tb.tags {
		result[k] = v
	}
	return result
}

// Build returns the tags as a Key/Value list sorted by key, so rendering is
// stable.
func (tb *TagBuilder) Build() []any {
	return tb.build(nil)
}

// BuildPropagated returns the tags with PropagateAtLaunch set, as autoscaling
// groups expect.
func (tb *TagBuilder) BuildPropagated() []any {
	propagate := true
	return tb.build(&propagate)
}

func (tb *TagBuilder) build(propagate *bool) []any {
	keys := make([]string, 0, len(tb.tags))
	for k := range tb.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		tag := map[string]any{"Key": k, "Value": tb.tags[k]}
		if propagate != nil {
			tag["PropagateAtLaunch"] = *propagate
		}
		out = append(out, tag)
	}
	return out
}
