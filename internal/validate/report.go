package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Report maps a field name to either a message string or, for sub-object
// fields, the nested Report of that sub-object. An empty report means the
// input was accepted.
type Report map[string]any

// OK reports whether validation succeeded.
func (r Report) OK() bool { return len(r) == 0 }

// Err returns nil for an empty report and an *Error otherwise.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Report: r}
}

// Paths lists every offending field as a dotted path, sorted.
func (r Report) Paths() []string {
	var out []string
	r.walk("", func(path, _ string) { out = append(out, path) })
	sort.Strings(out)
	return out
}

// Count is the number of offending leaf fields.
func (r Report) Count() int {
	n := 0
	r.walk("", func(string, string) { n++ })
	return n
}

func (r Report) walk(prefix string, fn func(path, msg string)) {
	for k, v := range r {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch t := v.(type) {
		case Report:
			t.walk(path, fn)
		case string:
			fn(path, t)
		default:
			fn(path, fmt.Sprint(t))
		}
	}
}

// Error carries a non-empty Report through error-returning call chains.
type Error struct {
	Report Report
}

func (e *Error) Error() string {
	var parts []string
	e.Report.walk("", func(path, msg string) {
		parts = append(parts, path+": "+msg)
	})
	sort.Strings(parts)
	return "invalid payload: " + strings.Join(parts, "; ")
}

func missing(name string) string {
	return fmt.Sprintf("missing parameter: '%s'", name)
}

func unknown(name string) string {
	return fmt.Sprintf("unknown parameter: '%s'", name)
}

func notObject(name string) string {
	return fmt.Sprintf("expected an object for parameter: '%s'", name)
}
