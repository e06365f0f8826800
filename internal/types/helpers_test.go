package types

import (
	"encoding/json"
	"testing"
)

func TestFloatFromAnyHandlesAllNumericTypes(t *testing.T) {
	tests := []struct {
		name   string
		val    any
		want   float64
		wantOK bool
	}{
		{"float64", float64(42.5), 42.5, true},
		{"int", int(99), 99, true},
		{"int64", int64(1234567890123), 1234567890123, true},
		{"json.Number", json.Number("256"), 256, true},
		{"bad json.Number", json.Number("x"), 0, false},
		{"nil", nil, 0, false},
		{"string", "not a number", 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FloatFromAny(tt.val)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("FloatFromAny(%v) = %v, %v; want %v, %v", tt.val, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIntFromAnyTruncates(t *testing.T) {
	if got := IntFromAny(256.9); got != 256 {
		t.Fatalf("IntFromAny: got %d, want 256", got)
	}
	if got := IntFromAny("x"); got != 0 {
		t.Fatalf("IntFromAny: got %d, want 0", got)
	}
}

func TestMessagesFromAny(t *testing.T) {
	got := MessagesFromAny([]any{
		map[string]any{"role": "system", "content": "be brief"},
		"garbage",
		map[string]any{"role": "user", "content": []any{map[string]any{"type": "text", "text": "hi"}}, "name": "ann"},
	})
	if len(got) != 2 {
		t.Fatalf("len: got %d, want 2", len(got))
	}
	if got[0].Role != "system" || got[0].Content != "be brief" {
		t.Fatalf("first message: %+v", got[0])
	}
	if got[1].Name != "ann" {
		t.Fatalf("second message name: got %q", got[1].Name)
	}
	if MessagesFromAny("nope") != nil {
		t.Fatal("expected nil for non-list input")
	}
}
