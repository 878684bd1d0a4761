// Package config parses an environment description from YAML into a
// generic tree the conductor builds entities from. It deliberately stops
// at the parse-into-tree step: Jinja-style templating, remote ship
// providers, and include_services file merging are the out-of-scope
// "loader" collaborator (spec.md §1) that would sit in front of this
// package.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Document is a parsed environment description, keyed the way
// maestro's top-level YAML is: name, ships, services, registries, audit,
// include_services, __maestro.
type Document struct {
	Raw map[string]interface{}
}

// Loader is the seam a templating/remote-fetch front end plugs into;
// Parse below is the stock implementation that reads a literal byte
// slice.
type Loader interface {
	Load(name string) (*Document, error)
}

// Parse decodes data into a Document, rejecting duplicate mapping keys
// at any level — something encoding/yaml-style Unmarshal into a map
// silently allows (last key wins) but which almost always indicates a
// copy-paste mistake in a hand-edited environment file.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, types.NewConfigurationError("invalid YAML: %v", err)
	}
	if len(root.Content) == 0 {
		return &Document{Raw: map[string]interface{}{}}, nil
	}

	if err := checkDuplicateKeys(root.Content[0], ""); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := root.Content[0].Decode(&raw); err != nil {
		return nil, types.NewConfigurationError("invalid environment description: %v", err)
	}
	return &Document{Raw: raw}, nil
}

// checkDuplicateKeys walks a yaml.Node mapping tree and errors on any
// mapping that repeats a key, recursing into every nested mapping and
// sequence so a duplicate anywhere in the document is caught.
func checkDuplicateKeys(node *yaml.Node, path string) error {
	switch node.Kind {
	case yaml.MappingNode:
		seen := make(map[string]bool, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value
			if seen[key] {
				return types.NewConfigurationError(
					"duplicate key %q at %s", key, displayPath(path))
			}
			seen[key] = true
			if err := checkDuplicateKeys(valNode, path+"."+key); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			if err := checkDuplicateKeys(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path[1:]
}

// Name returns the environment's name, per spec.md §6 ("name" required).
func (d *Document) Name() (string, error) {
	name, ok := d.Raw["name"].(string)
	if !ok || name == "" {
		return "", types.NewConfigurationError("environment description is missing required key \"name\"")
	}
	return name, nil
}

// Schema returns the __maestro.schema value, defaulting to 1.
func (d *Document) Schema() int {
	meta, ok := d.Raw["__maestro"].(map[string]interface{})
	if !ok {
		return 1
	}
	switch v := meta["schema"].(type) {
	case int:
		return v
	}
	return 1
}

// Ships returns the raw ships mapping (or list, per spec.md §6).
func (d *Document) Ships() interface{} {
	return d.Raw["ships"]
}

// Services returns the raw services mapping.
func (d *Document) Services() map[string]interface{} {
	services, _ := d.Raw["services"].(map[string]interface{})
	return services
}

// Registries returns the raw registries mapping.
func (d *Document) Registries() map[string]interface{} {
	regs, _ := d.Raw["registries"].(map[string]interface{})
	return regs
}

// AuditConfig returns the raw audit sink configuration list.
func (d *Document) AuditConfig() []map[string]interface{} {
	raw, ok := d.Raw["audit"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
