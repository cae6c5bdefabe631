package adapter

import (
	"regexp"
	"strings"
)

// RedactionMarker replaces every secret-shaped value in traces and
// uploaded payloads.
const RedactionMarker = "<REDACTED>"

// secretKeyFragments flag mapping keys whose values are redacted wholesale.
var secretKeyFragments = []string{"key", "secret", "token", "password", "api"}

// secretValuePattern matches secret-token-like string values: a
// recognizable prefix followed by a long alphanumeric run.
var secretValuePattern = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`)

// Redact recursively replaces secret-shaped values in a structure of
// maps, slices, and leaves. The input is never mutated; redaction is
// applied before any trace is returned to a caller or transmitted
// externally.
func Redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return RedactMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Redact(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RedactMap(item)
		}
		return out
	case string:
		if secretValuePattern.MatchString(val) {
			return RedactionMarker
		}
		return val
	default:
		return v
	}
}

// RedactMap redacts one mapping: keys whose lowercased name contains a
// secret fragment have their value replaced regardless of type; all other
// values are walked recursively.
func RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if secretKey(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = Redact(v)
	}
	return out
}

func secretKey(k string) bool {
	lower := strings.ToLower(k)
	for _, fragment := range secretKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
