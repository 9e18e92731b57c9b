package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const opinionSchemaURL = "judge_opinion.json"

// CompileSchema compiles a schema held as a generic map. The opinion provider
// compiles once at construction and reuses the result for every call.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(opinionSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return c.Compile(opinionSchemaURL)
}

// ValidateJSON checks a sanitised opinion document against the compiled schema.
func ValidateJSON(schema *jsonschema.Schema, doc []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode opinion: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("opinion does not match schema: %w", err)
	}
	return nil
}
