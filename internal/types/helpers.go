package types

import (
	"encoding/json"
	"fmt"
)

// IntFromAny converts a JSON-decoded numeric value to int.
// Handles float64, int, and json.Number (all common from json.Unmarshal).
func IntFromAny(v any) int {
	f, _ := FloatFromAny(v)
	return int(f)
}

// FloatFromAny converts a JSON-decoded numeric value to float64. The second
// result is false when v is not a number.
func FloatFromAny(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// MessagesFromAny lifts a decoded "messages" list into typed messages.
// Entries that are not objects are skipped; non-string roles are formatted.
func MessagesFromAny(v any) []ChatMessage {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ChatMessage, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg := ChatMessage{Content: m["content"]}
		if role, ok := m["role"].(string); ok {
			msg.Role = role
		} else if m["role"] != nil {
			msg.Role = fmt.Sprint(m["role"])
		}
		if name, ok := m["name"].(string); ok {
			msg.Name = name
		}
		out = append(out, msg)
	}
	return out
}
