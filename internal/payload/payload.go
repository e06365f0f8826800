// Package payload binds a schema version to the operations the worker needs
// on a request: parse it, re-encode it for the model server, synthesize a
// benchmark request and estimate its workload.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/n0madic/go-tgi-worker/internal/schema"
	"github.com/n0madic/go-tgi-worker/internal/types"
	"github.com/n0madic/go-tgi-worker/internal/validate"
)

// Version is one payload contract: a descriptor plus its workload rule and
// a pre-validated benchmark instance.
type Version struct {
	Schema   *schema.Schema
	Workload Rule

	benchmark validate.Canonical
}

// NewVersion checks that rule resolves against s and that the benchmark
// instance is valid for s, so Benchmark can never fail later.
func NewVersion(s *schema.Schema, rule Rule) (*Version, error) {
	if err := rule.check(s); err != nil {
		return nil, fmt.Errorf("version %q: %w", s.Name(), err)
	}
	v := &Version{Schema: s, Workload: rule}
	canonical, report := validate.Validate(benchmarkInput(rule, BenchmarkMaxTokens), s)
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("version %q: benchmark instance: %w", s.Name(), err)
	}
	v.benchmark = canonical
	return v, nil
}

func (v *Version) Name() string { return v.Schema.Name() }

// Parse validates raw against the version's schema.
func (v *Version) Parse(raw map[string]any) (*Payload, validate.Report) {
	canonical, report := validate.Validate(raw, v.Schema)
	if !report.OK() {
		return nil, report
	}
	return &Payload{version: v, values: canonical}, nil
}

// ParseJSON decodes and validates a request body. A rejected payload
// returns a *validate.Error; malformed JSON returns validate.ErrInvalidJSON
// or validate.ErrNotObject.
func (v *Version) ParseJSON(body []byte) (*Payload, error) {
	raw, err := validate.ParseJSON(body)
	if err != nil {
		return nil, err
	}
	p, report := v.Parse(raw)
	if err := report.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Benchmark returns a fresh copy of the canned benchmark request.
func (v *Version) Benchmark() *Payload {
	values, _ := validate.Clone(map[string]any(v.benchmark)).(map[string]any)
	return &Payload{version: v, values: values}
}

// Payload is an accepted, fully defaulted request of one version.
type Payload struct {
	version *Version
	values  validate.Canonical
}

// Version returns the name of the contract the payload was parsed with.
func (p *Payload) Version() string { return p.version.Name() }

// Get returns the value at a dotted field path.
func (p *Payload) Get(path string) (any, bool) {
	return lookup(p.values, path)
}

// WireJSON returns every declared field, defaults included, as a JSON
// object. The result is a copy the caller may modify.
func (p *Payload) WireJSON() map[string]any {
	out, _ := validate.Clone(map[string]any(p.values)).(map[string]any)
	return out
}

// ErrInvalidWire reports an encoded payload that is not valid JSON.
var ErrInvalidWire = errors.New("encoded payload is not valid JSON")

// WireBytes encodes the payload with keys in schema order.
func (p *Payload) WireBytes() ([]byte, error) {
	out, err := encodeOrdered(p.version.Schema, p.values)
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, ErrInvalidWire
	}
	return out, nil
}

func (p *Payload) MarshalJSON() ([]byte, error) { return p.WireBytes() }

// Workload is the capacity figure for this request.
func (p *Payload) Workload() float64 {
	return p.version.Workload.eval(p.values)
}

// Messages lifts the conversation into typed messages.
func (p *Payload) Messages() []types.ChatMessage {
	return types.MessagesFromAny(p.values["messages"])
}

// MaxTokens returns the generation bound, wherever the version keeps it.
func (p *Payload) MaxTokens() (int, bool) {
	for _, path := range []string{"max_tokens", "parameters.max_tokens"} {
		v, ok := lookup(p.values, path)
		if !ok {
			continue
		}
		if _, isNum := types.FloatFromAny(v); isNum {
			return types.IntFromAny(v), true
		}
	}
	return 0, false
}

// Stream reports whether the client asked for a streamed response.
func (p *Payload) Stream() bool {
	b, _ := p.values["stream"].(bool)
	return b
}

// String prints the fields that differ from their defaults.
func (p *Payload) String() string {
	var b strings.Builder
	writeFields(&b, p.version.Schema, p.values)
	return b.String()
}

func writeFields(b *strings.Builder, s *schema.Schema, values map[string]any) {
	b.WriteString(s.Name())
	b.WriteByte('{')
	first := true
	for _, f := range s.Fields() {
		v := values[f.Name]
		if f.Kind != schema.KindNested && f.HasDefault() && reflect.DeepEqual(v, f.Default) {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		if f.Kind == schema.KindNested {
			child, _ := v.(map[string]any)
			writeFields(b, f.Nested, child)
			continue
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		if list, ok := v.([]any); ok {
			fmt.Fprintf(b, "[%d items]", len(list))
		} else {
			fmt.Fprintf(b, "%v", v)
		}
	}
	b.WriteByte('}')
}

func encodeOrdered(s *schema.Schema, values map[string]any) ([]byte, error) {
	out := []byte(`{}`)
	for _, f := range s.Fields() {
		var err error
		key := escapeKey(f.Name)
		if f.Kind == schema.KindNested {
			child, _ := values[f.Name].(map[string]any)
			var raw []byte
			raw, err = encodeOrdered(f.Nested, child)
			if err == nil {
				out, err = sjson.SetRawBytes(out, key, raw)
			}
		} else {
			var raw []byte
			raw, err = encodeValue(values[f.Name])
			if err == nil {
				out, err = sjson.SetRawBytes(out, key, raw)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.Name, err)
		}
	}
	return out, nil
}

// encodeValue writes json.Number values as their original text and refuses
// non-finite floats.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// escapeKey makes a field name a literal sjson path component.
func escapeKey(name string) string {
	var b strings.Builder
	numeric := name != ""
	for _, r := range name {
		switch r {
		case '.', '*', '?', '\\', ':', '|', '#', '@':
			b.WriteByte('\\')
		}
		if r < '0' || r > '9' {
			numeric = false
		}
		b.WriteRune(r)
	}
	if numeric {
		return ":" + b.String()
	}
	return b.String()
}

// Rejected extracts the field report when err is a validation failure
// rather than a decoding error.
func Rejected(err error) (validate.Report, bool) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return verr.Report, true
	}
	return nil, false
}
