package topology

import (
	"errors"
	"fmt"
	"sort"
)

// Graph construction errors.
var (
	ErrDuplicateResource = errors.New("duplicate logical ID")
	ErrMissingReference  = errors.New("reference to undeclared resource")
	ErrRankViolation     = errors.New("reference to a higher-ranked component")
	ErrDependencyCycle   = errors.New("dependency cycle")
)

// Output is a named value exported by the stack.
type Output struct {
	Description string `json:"Description,omitempty"`
	Value       any    `json:"Value"`
	Export      any    `json:"Export,omitempty"`
}

// Builder collects resources and outputs. It is not safe for concurrent use.
// Build freezes the collected resources into an immutable Graph.
type Builder struct {
	description string
	resources   map[string]Resource
	order       []string
	outputs     map[string]Output
	metadata    map[string]any
}

// NewBuilder returns an empty builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]Resource),
		outputs:     make(map[string]Output),
		metadata:    make(map[string]any),
	}
}

// Add declares a resource. Logical IDs are unique.
func (b *Builder) Add(r Resource) error {
	if r.LogicalID == "" {
		return fmt.Errorf("resource of type %s has no logical ID", r.Type)
	}
	if r.Type == "" {
		return fmt.Errorf("resource %s has no type", r.LogicalID)
	}
	if r.Component.Rank() < 0 {
		return fmt.Errorf("resource %s has unknown component %q", r.LogicalID, r.Component)
	}
	if _, exists := b.resources[r.LogicalID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, r.LogicalID)
	}
	b.resources[r.LogicalID] = r.clone()
	b.order = append(b.order, r.LogicalID)
	return nil
}

// Has reports whether a logical ID has been declared.
func (b *Builder) Has(logicalID string) bool {
	_, ok := b.resources[logicalID]
	return ok
}

// AddOutput declares a stack output.
func (b *Builder) AddOutput(name string, o Output) error {
	if _, exists := b.outputs[name]; exists {
		return fmt.Errorf("%w: output %s", ErrDuplicateResource, name)
	}
	b.outputs[name] = o
	return nil
}

// SetMetadata attaches template-level metadata.
func (b *Builder) SetMetadata(key string, value any) {
	b.metadata[key] = value
}

// Build validates every reference, enforces component ranks and orders the
// resources so that each one follows everything it depends on.
func (b *Builder) Build() (*Graph, error) {
	deps := make(map[string][]string, len(b.resources))

	for _, id := range b.order {
		r := b.resources[id]
		edges := make(map[string]bool)
		for _, ref := range references(r.Properties) {
			edges[ref] = true
		}
		for _, dep := range r.DependsOn {
			edges[dep] = true
		}

		list := make([]string, 0, len(edges))
		for dep := range edges {
			target, ok := b.resources[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s references %q", ErrMissingReference, id, dep)
			}
			if target.Component.Rank() > r.Component.Rank() {
				return nil, fmt.Errorf("%w: %s (%s) references %s (%s)",
					ErrRankViolation, id, r.Component, dep, target.Component)
			}
			list = append(list, dep)
		}
		sort.Strings(list)
		deps[id] = list
	}

	for name, o := range b.outputs {
		for _, ref := range references(o.Value) {
			if _, ok := b.resources[ref]; !ok {
				return nil, fmt.Errorf("%w: output %s references %q", ErrMissingReference, name, ref)
			}
		}
	}

	order, err := topoSort(deps)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		description: b.description,
		resources:   make(map[string]Resource, len(b.resources)),
		deps:        deps,
		order:       order,
		outputs:     make(map[string]Output, len(b.outputs)),
		metadata:    make(map[string]any, len(b.metadata)),
	}
	for id, r := range b.resources {
		g.resources[id] = r.clone()
	}
	for name, o := range b.outputs {
		g.outputs[name] = o
	}
	for k, v := range b.metadata {
		g.metadata[k] = cloneValue(v)
	}
	return g, nil
}

// topoSort orders nodes with Kahn's algorithm. Ties are broken by logical ID
// so the order is stable across runs.
func topoSort(deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for id, list := range deps {
		indegree[id] += 0
		for _, dep := range list {
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := dependents[id]
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(order) != len(deps) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %v", ErrDependencyCycle, stuck)
	}
	return order, nil
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
