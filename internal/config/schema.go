package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
)

// GenerateSchemaFile generates a JSON schema file for the configuration.
// This is called when a default config is created so editors can validate
// and complete the TOML file.
func GenerateSchemaFile() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	schemaFile := filepath.Join(configDir, "config.schema.json")

	r := new(jsonschema.Reflector)
	schema := r.Reflect(&Config{})

	schema.ID = "https://github.com/kmuller/camdeck/config.schema.json"
	schema.Title = "camdeck Configuration"
	schema.Description = "Configuration schema for camdeck, a desktop shell for self-hosted NVR web apps"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	if err := os.WriteFile(schemaFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write schema file: %w", err)
	}

	return schemaFile, nil
}
