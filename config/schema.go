package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema generates the JSON Schema for hpcode.yml. It reflects the
// Config struct but excludes Extensions, which accept arbitrary keys.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Unknown top-level keys are extension sections, so keep additional
		// properties open at the root.
		AllowAdditionalProperties: true,
		// Expand struct references instead of using $ref for a cleaner schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "hpcode Configuration"
	schema.Description = "Schema for hpcode.yml properties."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}

// ValidateAgainstSchema checks a loaded configuration against the generated
// JSON Schema. It complements Validate, which covers the semantic rules the
// schema cannot express.
func ValidateAgainstSchema(cfg *Config) error {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	compiler := schemavalidator.NewCompiler()
	if err := compiler.AddResource("hpcode.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("hpcode.json")
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	// Round-trip through JSON so the validator sees plain maps and slices.
	jsonData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(jsonData, &generic); err != nil {
		return fmt.Errorf("failed to unmarshal config for validation: %w", err)
	}

	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("configuration failed schema validation: %w", err)
	}
	return nil
}
