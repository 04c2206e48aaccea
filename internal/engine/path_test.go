package engine

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestLookup(t *testing.T) {
	root := decode(t, `{
		"data": {
			"task_id": "t-1",
			"value": 42,
			"items": [{"url": "a"}, {"url": "b"}],
			"empty": null
		}
	}`)

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"data.task_id", "t-1", true},
		{"data.value", float64(42), true},
		{"data.items.1.url", "b", true},
		{"data.items[0].url", "a", true},
		{"data.empty", nil, true},
		{"data.missing", nil, false},
		{"data.items.5.url", nil, false},
		{"data.items.x", nil, false},
		{"data.task_id.deeper", nil, false},
		{"data..value", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := Lookup(root, tt.path)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLookup_RootPath(t *testing.T) {
	root := decode(t, `[1, 2]`)
	got, ok := Lookup(root, "")
	if !ok || !reflect.DeepEqual(got, root) {
		t.Errorf("empty path should return root, got %v %v", got, ok)
	}
	got, ok = Lookup(root, "0")
	if !ok || got != float64(1) {
		t.Errorf("index on root array failed: %v %v", got, ok)
	}
}

func TestExtract(t *testing.T) {
	root := decode(t, `{"data":{"value":42,"status":"done"}}`)

	ex := Extract(root, map[string]string{
		"x":      "data.value",
		"status": "data.status",
		"url":    "data.result.url",
	})

	if ex.Fields["x"] != float64(42) {
		t.Errorf("x = %v, want 42", ex.Fields["x"])
	}
	if ex.Fields["status"] != "done" {
		t.Errorf("status = %v", ex.Fields["status"])
	}
	if v, ok := ex.Fields["url"]; !ok || v != nil {
		t.Error("missing field should be present with nil value")
	}
	if ex.Complete() {
		t.Error("extraction should not be complete")
	}
	if !reflect.DeepEqual(ex.Missing, []string{"url"}) {
		t.Errorf("Missing = %v", ex.Missing)
	}
	if ex.MissingError() == nil {
		t.Error("expected MissingError")
	}
}
