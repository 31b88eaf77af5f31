// Package template models a normalized infrastructure template: the resource
// map with intrinsics already resolved by an external normalizer. Resource
// declaration order is preserved so downstream merge behavior stays
// deterministic.
package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Resource is one template resource entry.
type Resource struct {
	LogicalID  string
	Type       string
	Properties map[string]any
}

// Template is a normalized template. Resources keeps declaration order;
// the index is a convenience lookup by logical id.
type Template struct {
	Resources []Resource

	index map[string]int
}

// Parse decodes a template from YAML or JSON bytes. JSON is a YAML subset,
// so a single decoder covers both.
func Parse(data []byte) (*Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &Template{index: map[string]int{}}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("template root must be a mapping, got %v", root.Kind)
	}

	tmpl := &Template{index: map[string]int{}}
	resourcesNode := mappingValue(root, "Resources")
	if resourcesNode == nil {
		return tmpl, nil
	}
	if resourcesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("Resources must be a mapping, got %v", resourcesNode.Kind)
	}

	for i := 0; i+1 < len(resourcesNode.Content); i += 2 {
		logicalID := resourcesNode.Content[i].Value
		entry := resourcesNode.Content[i+1]

		var body struct {
			Type       string         `yaml:"Type"`
			Properties map[string]any `yaml:"Properties"`
		}
		if err := entry.Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode resource %s: %w", logicalID, err)
		}

		tmpl.index[logicalID] = len(tmpl.Resources)
		tmpl.Resources = append(tmpl.Resources, Resource{
			LogicalID:  logicalID,
			Type:       body.Type,
			Properties: body.Properties,
		})
	}

	return tmpl, nil
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied template path
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return Parse(data)
}

// Get returns the resource with the given logical id.
func (t *Template) Get(logicalID string) (Resource, bool) {
	idx, ok := t.index[logicalID]
	if !ok {
		return Resource{}, false
	}
	return t.Resources[idx], true
}

// mappingValue returns the value node for a key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
