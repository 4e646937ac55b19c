package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk layout of a schema override file. Sections
// left empty fall back to the built-in defaults.
type fileSchema struct {
	Entities         []Rule   `yaml:"entities"`
	Datatypes        []string `yaml:"datatypes"`
	JSONDataSuffixes []string `yaml:"json_data_suffixes"`
	Suffixes         []string `yaml:"suffixes"`
	Extensions       []string `yaml:"extensions"`
}

// LoadFile builds an Index from a YAML schema file. Any section the
// file omits keeps its built-in default. Errors here are configuration
// errors and abort startup.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}

	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}

	rules := fs.Entities
	if len(rules) == 0 {
		rules = defaultRules
	}
	datatypes := fs.Datatypes
	if len(datatypes) == 0 {
		datatypes = defaultDatatypes
	}
	jsonData := fs.JSONDataSuffixes
	if len(jsonData) == 0 {
		jsonData = defaultJSONDataSuffixes
	}

	ix, err := build(rules, datatypes, jsonData, fs.Suffixes, fs.Extensions)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return ix, nil
}

// Load returns the Index for an optional schema file path. An empty
// path selects the built-in defaults.
func Load(path string) (*Index, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
