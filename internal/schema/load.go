package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is one version read from a descriptor file, together with the
// workload derivation declared next to it.
type Definition struct {
	Schema           *Schema
	WorkloadField    string
	WorkloadFallback float64
}

type fileDoc struct {
	Versions []versionDoc `yaml:"versions"`
}

type versionDoc struct {
	Name             string     `yaml:"name"`
	Strict           bool       `yaml:"strict"`
	NullMeansMissing bool       `yaml:"null_means_missing"`
	Workload         string     `yaml:"workload"`
	WorkloadFallback float64    `yaml:"workload_fallback"`
	Fields           []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name             string     `yaml:"name"`
	Kind             string     `yaml:"kind"`
	Required         bool       `yaml:"required"`
	Default          yaml.Node  `yaml:"default"`
	Strict           bool       `yaml:"strict"`
	NullMeansMissing bool       `yaml:"null_means_missing"`
	Fields           []fieldDoc `yaml:"fields"`
}

// LoadYAML parses version descriptors of the form
//
//	versions:
//	  - name: my-chat
//	    strict: true
//	    workload: max_tokens
//	    fields:
//	      - {name: messages, kind: list, required: true}
//	      - {name: temperature, kind: number, default: null}
//
// Optional scalar fields must carry a default key; "default: null" defaults
// to JSON null. Only nested fields may omit it.
func LoadYAML(data []byte) ([]Definition, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	defs := make([]Definition, 0, len(doc.Versions))
	for _, v := range doc.Versions {
		if v.Name == "" {
			return nil, fmt.Errorf("parse schema file: version without name")
		}
		fields, err := buildFields(v.Fields)
		if err != nil {
			return nil, fmt.Errorf("version %q: %w", v.Name, err)
		}
		s, err := New(v.Name, Options{Strict: v.Strict, NullMeansMissing: v.NullMeansMissing}, fields...)
		if err != nil {
			return nil, err
		}
		defs = append(defs, Definition{Schema: s, WorkloadField: v.Workload, WorkloadFallback: v.WorkloadFallback})
	}
	return defs, nil
}

func buildFields(docs []fieldDoc) ([]Field, error) {
	fields := make([]Field, 0, len(docs))
	for _, d := range docs {
		kind, err := ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Name, err)
		}
		if len(d.Fields) > 0 && kind == KindAny {
			kind = KindNested
		}
		f := Field{Name: d.Name, Required: d.Required, Kind: kind, Default: NoDefault()}
		if d.Default.Kind != 0 {
			var v any
			if err := d.Default.Decode(&v); err != nil {
				return nil, fmt.Errorf("field %q default: %w", d.Name, err)
			}
			f.Default = jsonValue(v)
		}
		if kind == KindNested {
			children, err := buildFields(d.Fields)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", d.Name, err)
			}
			child, err := New(d.Name, Options{Strict: d.Strict, NullMeansMissing: d.NullMeansMissing}, children...)
			if err != nil {
				return nil, err
			}
			f.Nested = child
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// jsonValue converts YAML-decoded values to the types encoding/json
// produces, so defaults compare equal to values that went over the wire.
func jsonValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
