package payload

import (
	"fmt"
	"sort"

	"github.com/n0madic/go-tgi-worker/internal/schema"
)

// builtinRules maps each built-in version to its workload derivation. All
// of them measure the requested generation length.
var builtinRules = map[string]Rule{
	schema.VersionTGINested:     {Field: "parameters.max_tokens", Fallback: BenchmarkMaxTokens},
	schema.VersionChat:          {Field: "max_tokens", Fallback: BenchmarkMaxTokens},
	schema.VersionChatStrict:    {Field: "max_tokens", Fallback: BenchmarkMaxTokens},
	schema.VersionChatDynamic:   {Field: "max_tokens", Fallback: BenchmarkMaxTokens},
	schema.VersionTGIFlatParams: {Field: "parameters.max_tokens", Fallback: BenchmarkMaxTokens},
}

// Registry holds the versions a worker can be configured with. It is filled
// at startup and only read afterwards.
type Registry struct {
	versions map[string]*Version
}

// NewRegistry returns a registry holding the built-in versions.
func NewRegistry() (*Registry, error) {
	r := &Registry{versions: map[string]*Version{}}
	for _, name := range schema.BuiltinNames() {
		s, err := schema.Builtin(name)
		if err != nil {
			return nil, err
		}
		rule, ok := builtinRules[name]
		if !ok {
			return nil, fmt.Errorf("version %q: %w", name, ErrNoWorkloadField)
		}
		if err := r.Add(s, rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers s under its name, replacing any earlier version.
func (r *Registry) Add(s *schema.Schema, rule Rule) error {
	v, err := NewVersion(s, rule)
	if err != nil {
		return err
	}
	r.versions[s.Name()] = v
	return nil
}

// LoadYAML registers every version declared in a descriptor file.
func (r *Registry) LoadYAML(data []byte) error {
	defs, err := schema.LoadYAML(data)
	if err != nil {
		return err
	}
	for _, def := range defs {
		rule := Rule{Field: def.WorkloadField, Fallback: def.WorkloadFallback}
		if err := r.Add(def.Schema, rule); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the version registered under name.
func (r *Registry) Lookup(name string) (*Version, error) {
	v, ok := r.versions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownVersion, name)
	}
	return v, nil
}

// Names lists registered versions, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.versions))
	for name := range r.versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
