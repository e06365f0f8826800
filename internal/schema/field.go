package schema

import "fmt"

// Kind tags the shape a field's value is expected to have. The engine only
// uses it to decide whether to recurse; scalar kinds are informational and
// feed the OpenAPI export.
type Kind int

const (
	KindAny Kind = iota
	KindNumber
	KindBool
	KindString
	KindList
	KindObject // opaque key/value bag, stored unvalidated
	KindNested // structured sub-object described by a child schema
)

var kindNames = map[Kind]string{
	KindAny:    "any",
	KindNumber: "number",
	KindBool:   "boolean",
	KindString: "string",
	KindList:   "list",
	KindObject: "object",
	KindNested: "nested",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name (as written in descriptor files) to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	switch name {
	case "bool":
		return KindBool, nil
	case "array":
		return KindList, nil
	case "":
		return KindAny, nil
	}
	return KindAny, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

type noDefault struct{}

// NoDefault marks a field that has no declared default. It is distinct from
// a nil default, which means "defaults to JSON null".
func NoDefault() any { return noDefault{} }

// Field is one declared field of a schema.
type Field struct {
	Name     string
	Required bool
	Default  any
	Kind     Kind
	Nested   *Schema
}

// HasDefault reports whether the field declares a default (possibly null).
func (f Field) HasDefault() bool {
	_, none := f.Default.(noDefault)
	return !none
}

// Required declares a field that must be present in every request.
func Required(name string, kind Kind) Field {
	return Field{Name: name, Required: true, Default: NoDefault(), Kind: kind}
}

// Optional declares a field filled with def when absent. Pass nil for a
// null default.
func Optional(name string, kind Kind, def any) Field {
	return Field{Name: name, Default: def, Kind: kind}
}

// Sub declares a structured sub-object field validated against child.
func Sub(name string, required bool, child *Schema) Field {
	return Field{Name: name, Required: required, Default: NoDefault(), Kind: KindNested, Nested: child}
}

func (f Field) check() error {
	if f.Name == "" {
		return ErrEmptyFieldName
	}
	if f.Required && f.HasDefault() {
		return fmt.Errorf("%w: %q", ErrRequiredWithDefault, f.Name)
	}
	if f.Kind == KindNested {
		if f.Nested == nil {
			return fmt.Errorf("%w: %q", ErrNestedWithoutSchema, f.Name)
		}
		if f.HasDefault() {
			if _, ok := f.Default.(map[string]any); !ok {
				return fmt.Errorf("%w: %q", ErrNestedDefault, f.Name)
			}
		} else if !f.Required && f.Nested.hasRequired() {
			return fmt.Errorf("%w: %q", ErrOptionalNestedRequired, f.Name)
		}
	} else if f.Nested != nil {
		return fmt.Errorf("%w: %q has kind %s", ErrNestedWithoutSchema, f.Name, f.Kind)
	} else if !f.Required && !f.HasDefault() {
		return fmt.Errorf("%w: %q", ErrOptionalWithoutDefault, f.Name)
	}
	return nil
}
