package payload

import (
	"fmt"
	"strings"
)

// BenchmarkMaxTokens is the generation bound of the benchmark instance.
const BenchmarkMaxTokens = 256.0

func benchmarkConversation() []any {
	return []any{
		map[string]any{"role": "system", "content": "You are a helpful assistant."},
		map[string]any{"role": "user", "content": "What is deep learning?"},
	}
}

// benchmarkInput is the raw request the benchmark instance is parsed from:
// the canned conversation plus the generation bound written at the
// workload field, creating sub-objects on the way.
func benchmarkInput(rule Rule, bound float64) map[string]any {
	in := map[string]any{"messages": benchmarkConversation()}
	cur := in
	segments := strings.Split(rule.Field, ".")
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = bound
	return in
}

// BenchmarkSized builds the benchmark request with a different generation
// bound. Unlike Benchmark it validates again, since bound is caller input.
func (v *Version) BenchmarkSized(bound float64) (*Payload, error) {
	if bound <= 0 {
		return nil, fmt.Errorf("benchmark bound must be positive, got %v", bound)
	}
	p, report := v.Parse(benchmarkInput(v.Workload, bound))
	if err := report.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
