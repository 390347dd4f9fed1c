package theme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "palette"],
  "properties": {
    "id":   {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]{0,63}$"},
    "name": {"type": "string", "minLength": 1, "maxLength": 128},
    "palette": {
      "type": "object",
      "required": ["primary", "background"],
      "properties": {
        "mode":       {"enum": ["", "light", "dark"]},
        "primary":    {"$ref": "#/definitions/color"},
        "secondary":  {"$ref": "#/definitions/color"},
        "background": {"$ref": "#/definitions/color"},
        "surface":    {"$ref": "#/definitions/color"},
        "text":       {"$ref": "#/definitions/color"},
        "error":      {"$ref": "#/definitions/color"}
      },
      "additionalProperties": false
    },
    "shape": {
      "type": "object",
      "properties": {
        "borderRadius": {"type": "integer", "minimum": 0, "maximum": 64}
      },
      "additionalProperties": false
    },
    "components": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      }
    }
  },
  "definitions": {
    "color": {"type": "string", "pattern": "^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6})?$"}
  }
}`

const schemaURL = "theme-definition.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(definitionSchema))
	if err != nil {
		return nil, fmt.Errorf("parse theme schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add theme schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// Parse validates raw JSON against the definition schema and returns the
// normalized definition.
func Parse(raw []byte) (Definition, error) {
	schema, err := compiledSchema()
	if err != nil {
		return Definition{}, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	var d Definition
	if err := json.Unmarshal(raw, &d); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return Normalize(d)
}

// Validate checks an already decoded definition.
func Validate(d Definition) (Definition, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return Parse(raw)
}
