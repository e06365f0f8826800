package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/n0madic/go-tgi-worker/internal/schema"
	"github.com/n0madic/go-tgi-worker/internal/types"
)

var (
	ErrNoWorkloadField = errors.New("workload rule names no field")
	ErrWorkloadField   = errors.New("workload rule names an undeclared field")
)

// Rule derives the workload figure of a payload from one numeric field,
// addressed by a dotted path. Fallback is used when the field holds no
// number, which only happens for lenient inputs or null defaults.
type Rule struct {
	Field    string
	Fallback float64
}

// check resolves the path against s. Segments past an opaque object field
// cannot be checked and are accepted.
func (r Rule) check(s *schema.Schema) error {
	if r.Field == "" {
		return ErrNoWorkloadField
	}
	cur := s
	segments := strings.Split(r.Field, ".")
	for i, seg := range segments {
		f, ok := cur.Lookup(seg)
		if !ok {
			return fmt.Errorf("%w: %q", ErrWorkloadField, r.Field)
		}
		last := i == len(segments)-1
		switch f.Kind {
		case schema.KindNested:
			if last {
				return fmt.Errorf("%w: %q is a sub-object", ErrWorkloadField, r.Field)
			}
			cur = f.Nested
		case schema.KindObject, schema.KindAny:
			return nil
		default:
			if !last {
				return fmt.Errorf("%w: %q descends into a %s field", ErrWorkloadField, r.Field, f.Kind)
			}
		}
	}
	return nil
}

func (r Rule) eval(values map[string]any) float64 {
	v, ok := lookup(values, r.Field)
	if !ok {
		return r.Fallback
	}
	if n, ok := types.FloatFromAny(v); ok {
		return n
	}
	return r.Fallback
}

func lookup(values map[string]any, path string) (any, bool) {
	var cur any = values
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
