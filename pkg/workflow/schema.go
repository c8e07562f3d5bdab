package workflow

import "github.com/invopop/jsonschema"

// Schema returns the JSON Schema of the workflow document for editor
// validation.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Workflow{})
}

// JSONSchema documents the two shapes needs accepts: a job name or a list of
// job names.
func (Needs) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

// JSONSchema leaves the matrix open: axis names are free-form keys next to
// the include and exclude lists.
func (Matrix) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
