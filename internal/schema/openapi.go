package schema

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPI renders the descriptor as an OpenAPI object schema so clients can
// discover the active request contract.
func OpenAPI(s *Schema) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	out.Title = s.name
	out.Properties = make(openapi3.Schemas, len(s.fields))
	if s.opts.Strict {
		out.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	}
	if s.opts.NullMeansMissing {
		out.Extensions = map[string]any{"x-null-means-missing": true}
	}
	for _, f := range s.fields {
		prop := fieldSchema(f)
		if f.Required {
			out.Required = append(out.Required, f.Name)
		} else if f.HasDefault() {
			if f.Default == nil {
				prop.Nullable = true
			} else if f.Kind != KindNested {
				prop.Default = f.Default
			}
		}
		out.Properties[f.Name] = openapi3.NewSchemaRef("", prop)
	}
	return out
}

func fieldSchema(f Field) *openapi3.Schema {
	switch f.Kind {
	case KindNumber:
		return openapi3.NewFloat64Schema()
	case KindBool:
		return openapi3.NewBoolSchema()
	case KindString:
		return openapi3.NewStringSchema()
	case KindList:
		return openapi3.NewArraySchema().WithItems(openapi3.NewSchema())
	case KindObject:
		obj := openapi3.NewObjectSchema()
		obj.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(true)}
		return obj
	case KindNested:
		return OpenAPI(f.Nested)
	}
	return openapi3.NewSchema()
}
