package schema

import "encoding/json"

// JSONSchemaDialect is the $schema URI stamped on exported documents.
const JSONSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema renders s as a JSON Schema document. Backends use it to constrain model
// output and tool hosts use it to describe flow input.
func JSONSchema(s *Schema) map[string]any {
	doc := objectSchema(s.Fields)
	doc["$schema"] = JSONSchemaDialect
	if s.Name != "" {
		doc["title"] = s.Name
	}
	if s.Description != "" {
		doc["description"] = s.Description
	}
	return doc
}

// MarshalJSONSchema is JSONSchema encoded as JSON.
func MarshalJSONSchema(s *Schema) (json.RawMessage, error) {
	return json.Marshal(JSONSchema(s))
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for i := range fields {
		f := &fields[i]
		props[f.Name] = fieldSchema(f)
		if f.Required() {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f *Field) map[string]any {
	var out map[string]any
	switch f.Kind {
	case KindString:
		out = map[string]any{"type": "string"}
		if f.MinLength != nil {
			out["minLength"] = *f.MinLength
		}
		if f.MaxLength != nil {
			out["maxLength"] = *f.MaxLength
		}
		switch f.Format {
		case FormatDataURI:
			out["pattern"] = `^data:[^;,]+;base64,.+`
			out["contentEncoding"] = "base64"
		case FormatEmail:
			out["format"] = "email"
		}
	case KindInteger:
		out = map[string]any{"type": "integer"}
		if f.Min != nil {
			out["minimum"] = *f.Min
		}
		if f.Max != nil {
			out["maximum"] = *f.Max
		}
	case KindEnum:
		out = map[string]any{"type": "string", "enum": f.Enum}
	case KindArray:
		out = map[string]any{"type": "array"}
		if f.Items != nil {
			out["items"] = fieldSchema(f.Items)
		}
		if f.MinLength != nil {
			out["minItems"] = *f.MinLength
		}
		if f.MaxLength != nil {
			out["maxItems"] = *f.MaxLength
		}
	case KindRecord:
		out = objectSchema(f.Fields)
	default:
		out = map[string]any{}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if f.Default != nil {
		out["default"] = f.Default
	}
	return out
}
