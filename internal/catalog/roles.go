package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autohaus.io/cms/internal/domain"
)

//go:embed roles.yaml
var builtinRoles []byte

type rolesFile struct {
	Roles []domain.Role `yaml:"roles"`
}

// LoadRoles reads the role table from path, or the built-in table when path
// is empty. Unknown keys are rejected so that typos in flags fail loudly.
func LoadRoles(path string) ([]domain.Role, error) {
	data := builtinRoles
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roles file: %w", err)
		}
		data = raw
	}
	return ParseRoles(data)
}

// ParseRoles decodes a YAML role table.
func ParseRoles(data []byte) ([]domain.Role, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f rolesFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	return f.Roles, nil
}
