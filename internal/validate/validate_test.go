package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0madic/go-tgi-worker/internal/schema"
)

func messages() []any {
	return []any{map[string]any{"role": "user", "content": "hi"}}
}

func mustBuiltin(t *testing.T, name string) *schema.Schema {
	t.Helper()
	s, err := schema.Builtin(name)
	require.NoError(t, err)
	return s
}

func TestValidateMissingRequiredField(t *testing.T) {
	s := mustBuiltin(t, schema.VersionChat)

	got, report := Validate(map[string]any{"messages": messages()}, s)

	assert.Nil(t, got)
	want := Report{"max_tokens": "missing parameter: 'max_tokens'"}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	s := mustBuiltin(t, schema.VersionChat)

	got, report := Validate(map[string]any{
		"messages":    messages(),
		"max_tokens":  256.0,
		"temperature": 0.7,
	}, s)
	require.True(t, report.OK(), "unexpected report: %v", report)

	want := Canonical{
		"messages":    messages(),
		"max_tokens":  256.0,
		"temperature": 0.7,
		"top_p":       nil,
		"seed":        nil,
		"stop":        nil,
		"stream":      false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("canonical mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateNestedReportIsAttributedToParent(t *testing.T) {
	s := mustBuiltin(t, schema.VersionTGINested)

	_, report := Validate(map[string]any{
		"messages":   messages(),
		"parameters": map[string]any{"temperature": 0.5},
	}, s)

	want := Report{"parameters": Report{"max_tokens": "missing parameter: 'max_tokens'"}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"parameters.max_tokens"}, report.Paths())
}

func TestValidateNestedSuccessFillsChildDefaults(t *testing.T) {
	s := mustBuiltin(t, schema.VersionTGINested)

	got, report := Validate(map[string]any{
		"messages":   messages(),
		"parameters": map[string]any{"max_tokens": 64.0},
	}, s)
	require.True(t, report.OK())
	assert.Equal(t, map[string]any{"max_tokens": 64.0, "temperature": 0.01}, got["parameters"])
}

func TestValidateDoesNotShortCircuit(t *testing.T) {
	s := mustBuiltin(t, schema.VersionTGINested)

	_, report := Validate(map[string]any{}, s)

	want := Report{
		"messages":   "missing parameter: 'messages'",
		"parameters": "missing parameter: 'parameters'",
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, report.Count())
}

func TestValidateEachRequiredFieldReportedPrecisely(t *testing.T) {
	for _, name := range schema.BuiltinNames() {
		s := mustBuiltin(t, name)
		full := validInput(t, s)
		for _, f := range s.Fields() {
			if !f.Required {
				continue
			}
			t.Run(name+"/"+f.Name, func(t *testing.T) {
				in := Clone(full).(map[string]any)
				delete(in, f.Name)
				_, report := Validate(in, s)
				assert.Equal(t, []string{f.Name}, report.Paths())
			})
		}
	}
}

// validInput builds a minimal accepted input by answering every required
// field, recursing into sub-objects.
func validInput(t *testing.T, s *schema.Schema) map[string]any {
	t.Helper()
	in := map[string]any{}
	for _, f := range s.Fields() {
		if !f.Required {
			continue
		}
		switch f.Kind {
		case schema.KindNested:
			in[f.Name] = validInput(t, f.Nested)
		case schema.KindList:
			in[f.Name] = messages()
		default:
			in[f.Name] = 1.0
		}
	}
	_, report := Validate(in, s)
	require.True(t, report.OK(), "%s: %v", s.Name(), report)
	return in
}

func TestValidateStrictRejectsUnknownKeys(t *testing.T) {
	in := map[string]any{"messages": messages(), "max_tokens": 10.0, "foo": 1.0, "bar": "x"}

	_, report := Validate(in, mustBuiltin(t, schema.VersionChatStrict))
	want := Report{
		"foo": "unknown parameter: 'foo'",
		"bar": "unknown parameter: 'bar'",
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}

	got, report := Validate(in, mustBuiltin(t, schema.VersionChat))
	require.True(t, report.OK())
	assert.NotContains(t, got, "foo")
	assert.NotContains(t, got, "bar")
}

func TestValidateStrictChildRejectsUnknownKeys(t *testing.T) {
	s := mustBuiltin(t, schema.VersionTGIFlatParams)

	_, report := Validate(map[string]any{
		"messages":   messages(),
		"parameters": map[string]any{"do_sample": true},
		"extra":      1.0,
	}, s)
	want := Report{"parameters": Report{"do_sample": "unknown parameter: 'do_sample'"}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateNullHandling(t *testing.T) {
	in := map[string]any{"messages": messages(), "max_tokens": nil, "stream": nil}

	_, report := Validate(in, mustBuiltin(t, schema.VersionChatStrict))
	assert.Equal(t, Report{"max_tokens": "missing parameter: 'max_tokens'"}, report)

	in["max_tokens"] = 5.0
	got, report := Validate(in, mustBuiltin(t, schema.VersionChatStrict))
	require.True(t, report.OK())
	assert.Equal(t, false, got["stream"], "null falls back to the default")

	got, report = Validate(in, mustBuiltin(t, schema.VersionChat))
	require.True(t, report.OK())
	assert.Nil(t, got["stream"], "lenient schema keeps null verbatim")
}

func TestValidatePassesTypeMismatchesThrough(t *testing.T) {
	got, report := Validate(map[string]any{
		"messages":    "not a list",
		"max_tokens":  "lots",
		"temperature": -3.0,
	}, mustBuiltin(t, schema.VersionChat))
	require.True(t, report.OK())
	assert.Equal(t, "not a list", got["messages"])
	assert.Equal(t, "lots", got["max_tokens"])
	assert.Equal(t, -3.0, got["temperature"])
}

func TestValidateNestedNotObject(t *testing.T) {
	_, report := Validate(map[string]any{
		"messages":   messages(),
		"parameters": 5.0,
	}, mustBuiltin(t, schema.VersionTGINested))
	assert.Equal(t, Report{"parameters": "expected an object for parameter: 'parameters'"}, report)
}

func TestValidateOptionalNestedUsesChildDefaults(t *testing.T) {
	child := schema.MustNew("parameters", schema.Options{},
		schema.Optional("temperature", schema.KindNumber, 0.2),
	)
	s := schema.MustNew("v", schema.Options{}, schema.Sub("parameters", false, child))

	got, report := Validate(map[string]any{}, s)
	require.True(t, report.OK())
	assert.Equal(t, map[string]any{"temperature": 0.2}, got["parameters"])
}

func TestValidateDefaultsAreNotShared(t *testing.T) {
	s := mustBuiltin(t, schema.VersionChatDynamic)

	first, report := Validate(map[string]any{"messages": messages()}, s)
	require.True(t, report.OK())
	first["parameters"].(map[string]any)["poison"] = true

	second, report := Validate(map[string]any{"messages": messages()}, s)
	require.True(t, report.OK())
	assert.Empty(t, second["parameters"])
}

func TestValidateOpaqueObjectKeptVerbatim(t *testing.T) {
	bag := map[string]any{"repetition_penalty": 1.1, "nested": map[string]any{"x": []any{1.0}}}
	got, report := Validate(map[string]any{"messages": messages(), "parameters": bag}, mustBuiltin(t, schema.VersionChatDynamic))
	require.True(t, report.OK())
	assert.Equal(t, bag, got["parameters"])
	assert.Equal(t, schema.DefaultMaxTokens, got["max_tokens"])
}

func TestParseJSON(t *testing.T) {
	raw, err := ParseJSON([]byte(`{"messages":[{"role":"user","content":"hi"}],"max_tokens":256}`))
	require.NoError(t, err)
	assert.Equal(t, 256.0, raw["max_tokens"])
	assert.Equal(t, messages(), raw["messages"])

	_, err = ParseJSON([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseJSON([]byte(`{"messages":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ParseJSON(nil)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestParseJSONKeepsExactNumbers(t *testing.T) {
	raw, err := ParseJSON([]byte(`{"seed":9007199254740993,"temperature":1e400,"tiny":1e-400,"top_p":0.95,"n":1.50,"list":[18446744073709551615,2]}`))
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), raw["seed"])
	assert.Equal(t, json.Number("1e400"), raw["temperature"])
	assert.Equal(t, json.Number("1e-400"), raw["tiny"])
	assert.Equal(t, 0.95, raw["top_p"])
	assert.Equal(t, 1.5, raw["n"])
	assert.Equal(t, []any{json.Number("18446744073709551615"), 2.0}, raw["list"])
}

func TestReportErr(t *testing.T) {
	assert.NoError(t, Report{}.Err())
	assert.NoError(t, Report(nil).Err())

	err := Report{
		"parameters": Report{"max_tokens": "missing parameter: 'max_tokens'"},
		"messages":   "missing parameter: 'messages'",
	}.Err()
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Report.Count())
	assert.Equal(t,
		"invalid payload: messages: missing parameter: 'messages'; parameters.max_tokens: missing parameter: 'max_tokens'",
		err.Error())
}
