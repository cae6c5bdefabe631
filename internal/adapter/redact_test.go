package adapter

import (
	"reflect"
	"testing"
)

func TestRedactSecretKeys(t *testing.T) {
	in := map[string]any{
		"api_key":  "sk-abcdef1234567890",
		"password": 12345,
		"Token":    []any{"a", "b"},
		"plain":    "visible",
	}
	out := RedactMap(in)

	for _, k := range []string{"api_key", "password", "Token"} {
		if out[k] != RedactionMarker {
			t.Errorf("key %q = %v, want marker", k, out[k])
		}
	}
	if out["plain"] != "visible" {
		t.Errorf("plain value altered: %v", out["plain"])
	}
}

func TestRedactNestedDepth(t *testing.T) {
	in := map[string]any{
		"outer": map[string]any{
			"middle": []any{
				map[string]any{
					"api_key": "sk-deepsecret12345",
					"ok":      true,
				},
			},
		},
	}
	out := RedactMap(in)

	inner := out["outer"].(map[string]any)["middle"].([]any)[0].(map[string]any)
	if inner["api_key"] != RedactionMarker {
		t.Errorf("nested api_key = %v, want marker", inner["api_key"])
	}
	if inner["ok"] != true {
		t.Errorf("nested non-secret value altered: %v", inner["ok"])
	}
}

func TestRedactSecretShapedStrings(t *testing.T) {
	in := map[string]any{
		"note":  "use sk-AbCdEf123456789 for auth",
		"short": "sk-abc",
		"other": "hello world",
	}
	out := RedactMap(in)

	if out["note"] != RedactionMarker {
		t.Errorf("secret-shaped string not redacted: %v", out["note"])
	}
	if out["short"] != "sk-abc" {
		t.Errorf("short sk- string should pass through: %v", out["short"])
	}
	if out["other"] != "hello world" {
		t.Errorf("plain string altered: %v", out["other"])
	}
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"api_key": "sk-abcdef1234567890",
		"nested":  map[string]any{"secret_thing": "x"},
	}
	want := map[string]any{
		"api_key": "sk-abcdef1234567890",
		"nested":  map[string]any{"secret_thing": "x"},
	}
	RedactMap(in)
	if !reflect.DeepEqual(in, want) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestRedactPassesThroughScalars(t *testing.T) {
	for _, v := range []any{42, 4.2, true, nil} {
		if got := Redact(v); got != v {
			t.Errorf("Redact(%v) = %v", v, got)
		}
	}
}

func TestRedactRecordSlices(t *testing.T) {
	in := []map[string]any{
		{"api_key": "x"},
		{"value": 1},
	}
	out := Redact(in).([]any)
	if out[0].(map[string]any)["api_key"] != RedactionMarker {
		t.Errorf("record slice not redacted: %v", out)
	}
	if out[1].(map[string]any)["value"] != 1 {
		t.Errorf("record slice value altered: %v", out)
	}
}
