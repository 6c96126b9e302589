package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// blueprintSchema is the minimum shape a decoded reasoning-engine response
// must have before any field is read. Everything except image_prompt is
// optional and defaulted downstream.
const blueprintSchema = `{
  "type": "object",
  "required": ["image_prompt"],
  "properties": {
    "image_prompt": {"type": "string", "minLength": 1, "pattern": "\\S"}
  }
}`

var (
	blueprintOnce     sync.Once
	blueprintCompiled *gojsonschema.Schema
	blueprintErr      error
)

func compiledBlueprintSchema() (*gojsonschema.Schema, error) {
	blueprintOnce.Do(func() {
		blueprintCompiled, blueprintErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(blueprintSchema))
	})
	return blueprintCompiled, blueprintErr
}

// ValidateBlueprint checks a decoded JSON value (as produced by
// encoding/json into interface{}) against the blueprint schema.
func ValidateBlueprint(value interface{}) error {
	schema, err := compiledBlueprintSchema()
	if err != nil {
		return fmt.Errorf("compile blueprint schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("blueprint validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
