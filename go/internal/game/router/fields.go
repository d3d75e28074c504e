package router

import (
	"encoding/json"
	"math"
)

// decodeFields reads a payload as a JSON object. Anything else yields no fields,
// so every lookup falls back to its default.
func decodeFields(data json.RawMessage) map[string]json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}

// maxExactFloat is the largest integer a float64 holds without rounding
const maxExactFloat = 1 << 53

// intField returns the named field when it is an integral JSON number.
// Integers are taken as-is; float literals such as 30.0 are accepted while
// they still represent an exact integer.
func intField(fields map[string]json.RawMessage, key string, fallback int) int {
	raw, ok := fields[key]
	// json.Number would also accept a quoted "5"
	if !ok || string(raw) == "null" || (len(raw) > 0 && raw[0] == '"') {
		return fallback
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	if i, err := n.Int64(); err == nil {
		if i > math.MaxInt || i < math.MinInt {
			return fallback
		}
		return int(i)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return fallback
	}
	return int(f)
}

// stringField returns the named field when it is a JSON string. Only a missing
// or null key falls back; an empty string is a value of its own.
func stringField(fields map[string]json.RawMessage, key, fallback string) string {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	return s
}
