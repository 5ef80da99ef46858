package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveParams updates the params section in the config file so the current
// values come back as the prefill on the next start. Comments and formatting
// in other sections are preserved by editing the yaml.Node tree in place.
func SaveParams(configPath string, params ParamsConfig) error {
	doc, err := loadDocument(configPath)
	if err != nil {
		return err
	}

	upsertKey(documentRoot(doc), "params", &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "orbital_speed"},
			{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: params.OrbitalSpeed},
			{Kind: yaml.ScalarNode, Value: "altitude"},
			{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: params.Altitude},
		},
	})

	return writeDocument(configPath, doc)
}

// SaveSimExecPath updates simulation.exec_path in the config file, creating
// the simulation section if it does not exist yet.
func SaveSimExecPath(configPath, execPath string) error {
	doc, err := loadDocument(configPath)
	if err != nil {
		return err
	}

	root := documentRoot(doc)
	sim := childMapping(root, "simulation")
	upsertKey(sim, "exec_path", &yaml.Node{Kind: yaml.ScalarNode, Value: execPath})

	return writeDocument(configPath, doc)
}

// loadDocument parses the config file into a yaml.Node document, returning an
// empty document for a missing or empty file.
func loadDocument(configPath string) (*yaml.Node, error) {
	data, err := os.ReadFile(configPath) // #nosec G304 -- operator-chosen config path
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	return &doc, nil
}

// documentRoot returns the top-level mapping of the document, creating one
// when the document is empty or holds a non-mapping root.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}
	return doc.Content[0]
}

// childMapping returns the mapping stored under key, creating and attaching
// an empty one when the key is missing or holds a non-mapping value.
func childMapping(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			if mapping.Content[i+1].Kind != yaml.MappingNode {
				mapping.Content[i+1] = &yaml.Node{Kind: yaml.MappingNode}
			}
			return mapping.Content[i+1]
		}
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		child,
	)
	return child
}

// upsertKey replaces the value stored under key, or appends the pair when
// the key is missing.
func upsertKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// writeDocument marshals the document and writes it atomically: encode to a
// buffer, write a temp file in the same directory, then rename over the
// target.
func writeDocument(configPath string, doc *yaml.Node) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".orbitctl.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
