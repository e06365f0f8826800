// Package schema declares payload versions: which fields a request body
// carries, which are required, what the optional ones default to and which
// ones are structured sub-objects. Descriptors are plain data built once at
// startup and only read afterwards, so they are safe for concurrent use.
package schema

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFieldName         = errors.New("field name is empty")
	ErrDuplicateField         = errors.New("duplicate field")
	ErrRequiredWithDefault    = errors.New("required field cannot declare a default")
	ErrNestedWithoutSchema    = errors.New("nested field needs a child schema")
	ErrNestedDefault          = errors.New("nested field default must be an object")
	ErrOptionalNestedRequired = errors.New("optional nested field without default has required children")
	ErrOptionalWithoutDefault = errors.New("optional field needs a default")
	ErrUnknownKind            = errors.New("unknown field kind")
	ErrUnknownVersion         = errors.New("unknown schema version")
)

// Options are the per-version validation policies.
type Options struct {
	// Strict rejects keys that are not declared by the schema. Lenient
	// schemas drop them silently.
	Strict bool
	// NullMeansMissing treats a key holding JSON null as absent: required
	// fields report it missing, optional fields get their default.
	NullMeansMissing bool
}

// Schema is an ordered, immutable set of field declarations.
type Schema struct {
	name   string
	opts   Options
	fields []Field
	index  map[string]int
}

// New builds a schema, checking every field declaration.
func New(name string, opts Options, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		opts:   opts,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.check(); err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("schema %q: %w: %q", name, ErrDuplicateField, f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for package-level descriptor tables. It panics on an
// invalid declaration.
func MustNew(name string, opts Options, fields ...Field) *Schema {
	s, err := New(name, opts, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Strict() bool { return s.opts.Strict }

func (s *Schema) NullMeansMissing() bool { return s.opts.NullMeansMissing }

// Fields returns the declarations in schema order. The slice is a copy.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns declared names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the declaration for name.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Nested returns the child schema of a sub-object field, or nil.
func (s *Schema) Nested(name string) *Schema {
	f, ok := s.Lookup(name)
	if !ok {
		return nil
	}
	return f.Nested
}

func (s *Schema) hasRequired() bool {
	for _, f := range s.fields {
		if f.Required {
			return true
		}
	}
	return false
}
