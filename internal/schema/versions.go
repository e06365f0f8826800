package schema

import (
	"fmt"
	"sort"
)

// Built-in version names.
const (
	VersionTGINested      = "tgi-nested"
	VersionChat           = "chat"
	VersionChatStrict     = "chat-strict"
	VersionChatDynamic    = "chat-dynamic"
	VersionTGIFlatParams  = "tgi-flat-params"
	DefaultVersion        = VersionChat
	DefaultMaxTokens      = 256.0
	tgiDefaultTemperature = 0.01
)

// chatFields is the flat OpenAI-style request shape shared by the chat
// versions.
func chatFields() []Field {
	return []Field{
		Required("messages", KindList),
		Required("max_tokens", KindNumber),
		Optional("temperature", KindNumber, nil),
		Optional("top_p", KindNumber, nil),
		Optional("seed", KindNumber, nil),
		Optional("stop", KindAny, nil),
		Optional("stream", KindBool, false),
	}
}

var builtin = map[string]*Schema{
	VersionTGINested: MustNew(VersionTGINested, Options{},
		Required("messages", KindList),
		Sub("parameters", true, MustNew("parameters", Options{},
			Required("max_tokens", KindNumber),
			Optional("temperature", KindNumber, tgiDefaultTemperature),
		)),
	),

	VersionChat: MustNew(VersionChat, Options{}, chatFields()...),

	VersionChatStrict: MustNew(VersionChatStrict, Options{Strict: true, NullMeansMissing: true}, chatFields()...),

	VersionChatDynamic: MustNew(VersionChatDynamic, Options{},
		Required("messages", KindList),
		Optional("max_tokens", KindNumber, DefaultMaxTokens),
		Optional("parameters", KindObject, map[string]any{}),
	),

	VersionTGIFlatParams: MustNew(VersionTGIFlatParams, Options{},
		Required("messages", KindList),
		Sub("parameters", true, MustNew("parameters", Options{Strict: true},
			Optional("max_tokens", KindNumber, DefaultMaxTokens),
			Optional("temperature", KindNumber, nil),
			Optional("top_p", KindNumber, nil),
			Optional("seed", KindNumber, nil),
		)),
	),
}

// Builtin returns the descriptor registered under name.
func Builtin(name string) (*Schema, error) {
	s, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, name)
	}
	return s, nil
}

// BuiltinNames lists the built-in versions in a stable order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
