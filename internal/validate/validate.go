// Package validate turns an untyped request object into a fully defaulted
// canonical value for a schema, or into a per-field report of what is
// missing. It checks presence, not types: values are taken verbatim and
// type problems are left to the model server.
package validate

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/n0madic/go-tgi-worker/internal/schema"
)

var (
	ErrInvalidJSON = errors.New("request body is not valid JSON")
	ErrNotObject   = errors.New("request body must be a JSON object")
)

// Canonical holds a value for every declared field of a schema. Sub-object
// fields hold map[string]any values that are themselves canonical.
type Canonical map[string]any

// ParseJSON decodes a request body into a raw input object. Numbers that
// float64 cannot hold exactly are kept as json.Number.
func ParseJSON(body []byte) (map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, ErrNotObject
	}
	raw, ok := jsonValue(res).(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return raw, nil
}

// Validate checks raw against s. Every field is visited even after a
// failure so the report lists all problems at once. On failure the
// canonical value is nil.
func Validate(raw map[string]any, s *schema.Schema) (Canonical, Report) {
	fields := s.Fields()
	out := make(Canonical, len(fields))
	report := Report{}

	for _, f := range fields {
		v, present := raw[f.Name]
		if present && v == nil && s.NullMeansMissing() {
			present = false
		}

		if f.Kind == schema.KindNested {
			validateNested(f, v, present, out, report)
			continue
		}

		switch {
		case present:
			out[f.Name] = v
		case f.Required:
			report[f.Name] = missing(f.Name)
		default:
			out[f.Name] = Clone(f.Default)
		}
	}

	if s.Strict() {
		for k := range raw {
			if _, ok := s.Lookup(k); !ok {
				report[k] = unknown(k)
			}
		}
	}

	if !report.OK() {
		return nil, report
	}
	return out, nil
}

func validateNested(f schema.Field, v any, present bool, out Canonical, report Report) {
	var sub map[string]any
	switch {
	case present:
		m, ok := v.(map[string]any)
		if !ok {
			report[f.Name] = notObject(f.Name)
			return
		}
		sub = m
	case f.Required:
		report[f.Name] = missing(f.Name)
		return
	case f.HasDefault():
		sub, _ = Clone(f.Default).(map[string]any)
	default:
		sub = map[string]any{}
	}

	child, childReport := Validate(sub, f.Nested)
	if !childReport.OK() {
		report[f.Name] = childReport
		return
	}
	out[f.Name] = map[string]any(child)
}

// Clone deep-copies a JSON value so defaults and canonical values never
// share mutable maps or slices.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case Canonical:
		return Clone(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	}
	return v
}
