package protocol

import (
	"encoding/json"
	"maps"
	"strconv"
)

// Payload is the opaque structured part of a Message.
type Payload map[string]any

// Clone returns a shallow copy of p. Nested values are shared, which is fine
// because nothing mutates a payload after it has been built.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// String returns the string value stored under key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the integer value stored under key. Values decoded as
// json.Number, float64 and int are accepted; anything else yields def.
func (p Payload) Int(key string, def int) int {
	switch v := p[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Object returns the nested object stored under key, or nil.
func (p Payload) Object(key string) Payload {
	switch v := p[key].(type) {
	case Payload:
		return v
	case map[string]any:
		return Payload(v)
	}
	return nil
}

// Strings returns the string elements of the array stored under key.
func (p Payload) Strings(key string) []string {
	var out []string
	switch v := p[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Objects returns the object elements of the array stored under key.
func (p Payload) Objects(key string) []Payload {
	raw, ok := p[key].([]any)
	if !ok {
		if typed, ok := p[key].([]map[string]any); ok {
			out := make([]Payload, 0, len(typed))
			for _, m := range typed {
				out = append(out, Payload(m))
			}
			return out
		}
		return nil
	}
	out := make([]Payload, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, Payload(v))
		case Payload:
			out = append(out, v)
		}
	}
	return out
}
