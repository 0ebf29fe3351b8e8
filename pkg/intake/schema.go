package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "advocate://intake.schema.json"

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   *jsonschema.Schema
)

// Schema returns the JSON Schema document accepted by DecodeJSON.
// Enumerations are derived from the option labels so the two never drift.
func Schema() []byte {
	selectable := func(opts []string) []string {
		return append([]string{"", UnsetLabel}, opts...)
	}
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                "PatientIntake",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"pain_level": map[string]any{"type": "string", "enum": selectable(PainOptions())},
			"duration":   map[string]any{"type": "string", "enum": selectable(DurationOptions())},
			"goal":       map[string]any{"type": "string", "enum": selectable(GoalOptions())},
			"functional_impact": map[string]any{
				"type":     "array",
				"maxItems": len(ImpactOptions()),
				"items":    map[string]any{"type": "string", "enum": ImpactOptions()},
			},
		},
	}
	b, _ := json.Marshal(doc)
	return b
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(Schema())); err != nil {
			schemaErr = fmt.Errorf("add intake schema: %w", err)
			return
		}
		compiled, schemaErr = compiler.Compile(schemaURL)
	})
	return compiled, schemaErr
}

// DecodeJSON validates raw against the intake schema and decodes it.
// Structural problems are returned as errors; unset required fields are not,
// those are reported later by Validate.
func DecodeJSON(raw []byte) (PatientIntake, error) {
	schema, err := compiledSchema()
	if err != nil {
		return PatientIntake{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PatientIntake{}, fmt.Errorf("decode intake: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return PatientIntake{}, fmt.Errorf("intake schema: %w", err)
	}
	var form FormValues
	if err := json.Unmarshal(raw, &form); err != nil {
		return PatientIntake{}, fmt.Errorf("decode intake: %w", err)
	}
	return FromForm(form)
}
