package topology

import (
	"encoding/json"
	"fmt"
	"sort"

	"sigs.k8s.io/yaml"
)

// FormatVersion is the template format version written to every template.
const FormatVersion = "2010-09-09"

// MetadataComponentKey tags every rendered resource with its component.
const MetadataComponentKey = "cdk-example:component"

// Template is the deployable rendering of a graph.
type Template struct {
	FormatVersion string                      `json:"AWSTemplateFormatVersion"`
	Description   string                      `json:"Description,omitempty"`
	Metadata      map[string]any              `json:"Metadata,omitempty"`
	Resources     map[string]TemplateResource `json:"Resources"`
	Outputs       map[string]Output           `json:"Outputs,omitempty"`
}

// TemplateResource is one entry of the Resources section.
type TemplateResource struct {
	Type                string         `json:"Type"`
	Properties          map[string]any `json:"Properties,omitempty"`
	DependsOn           []string       `json:"DependsOn,omitempty"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty"`
	Metadata            map[string]any `json:"Metadata,omitempty"`
}

// Template renders the graph. Only explicit DependsOn edges are written;
// edges implied by references are left to the deployment engine.
func (g *Graph) Template() *Template {
	t := &Template{
		FormatVersion: FormatVersion,
		Description:   g.description,
		Resources:     make(map[string]TemplateResource, len(g.resources)),
	}
	if len(g.metadata) > 0 {
		t.Metadata = cloneValue(g.metadata).(map[string]any)
	}
	for id, r := range g.resources {
		c := r.clone()
		deps := c.DependsOn
		sort.Strings(deps)
		if len(deps) == 0 {
			deps = nil
		}
		t.Resources[id] = TemplateResource{
			Type:                c.Type,
			Properties:          c.Properties,
			DependsOn:           deps,
			DeletionPolicy:      c.DeletionPolicy,
			UpdateReplacePolicy: c.DeletionPolicy,
			Metadata:            map[string]any{MetadataComponentKey: string(c.Component)},
		}
	}
	if len(g.outputs) > 0 {
		t.Outputs = make(map[string]Output, len(g.outputs))
		for name, o := range g.outputs {
			t.Outputs[name] = o
		}
	}
	return t
}

// JSON renders the template with stable key order and indentation.
func (t *Template) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return append(data, '\n'), nil
}

// YAML renders the template as YAML.
func (t *Template) YAML() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	out, err := yaml.JSONToYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert template to YAML: %w", err)
	}
	return out, nil
}

// ParseTemplate reads a template rendered as JSON or YAML. Property values
// come back as generic maps and slices.
func ParseTemplate(data []byte) (*Template, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(jsonData, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	if t.Resources == nil {
		t.Resources = make(map[string]TemplateResource)
	}
	return &t, nil
}

// Normalize returns the template with every typed value replaced by its
// generic JSON form, so it compares equal to a parsed copy.
func (t *Template) Normalize() (*Template, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return ParseTemplate(data)
}
