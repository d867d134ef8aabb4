package topology

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Graph is an immutable, dependency-ordered set of resources. Accessors
// return copies; mutating them does not affect the graph.
type Graph struct {
	description string
	resources   map[string]Resource
	deps        map[string][]string
	order       []string
	outputs     map[string]Output
	metadata    map[string]any
}

// Len returns the number of resources.
func (g *Graph) Len() int {
	return len(g.order)
}

// Order returns logical IDs in creation order: every resource after all of
// its dependencies.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// DestroyOrder returns logical IDs in reverse creation order.
func (g *Graph) DestroyOrder() []string {
	out := make([]string, len(g.order))
	for i, id := range g.order {
		out[len(g.order)-1-i] = id
	}
	return out
}

// Resource returns a copy of one resource.
func (g *Graph) Resource(logicalID string) (Resource, bool) {
	r, ok := g.resources[logicalID]
	if !ok {
		return Resource{}, false
	}
	return r.clone(), true
}

// Resources returns copies of all resources in creation order.
func (g *Graph) Resources() []Resource {
	out := make([]Resource, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.resources[id].clone())
	}
	return out
}

// ResourcesOfType returns the resources of one type in creation order.
func (g *Graph) ResourcesOfType(typ string) []Resource {
	var out []Resource
	for _, id := range g.order {
		if r := g.resources[id]; r.Type == typ {
			out = append(out, r.clone())
		}
	}
	return out
}

// ResourcesOf returns the resources of one component in creation order.
func (g *Graph) ResourcesOf(c Component) []Resource {
	var out []Resource
	for _, id := range g.order {
		if r := g.resources[id]; r.Component == c {
			out = append(out, r.clone())
		}
	}
	return out
}

// Dependencies returns the direct dependencies of a resource.
func (g *Graph) Dependencies(logicalID string) []string {
	return append([]string(nil), g.deps[logicalID]...)
}

// OutputNames returns the output names, sorted.
func (g *Graph) OutputNames() []string {
	names := make([]string, 0, len(g.outputs))
	for name := range g.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Output returns one stack output.
func (g *Graph) Output(name string) (Output, bool) {
	o, ok := g.outputs[name]
	return o, ok
}

// CountByType returns how many resources of each type the graph holds.
func (g *Graph) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, r := range g.resources {
		counts[r.Type]++
	}
	return counts
}

// Fingerprint is a digest of the rendered template. Two graphs with the same
// fingerprint deploy identically.
func (g *Graph) Fingerprint() (string, error) {
	data, err := g.Template().JSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
