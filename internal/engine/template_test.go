package engine

import (
	"reflect"
	"testing"
)

func TestRender_Scalars(t *testing.T) {
	params := map[string]any{
		"name":  "sunset",
		"count": float64(3),
		"ratio": 0.5,
		"hd":    true,
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"string", "Bearer {{name}}", "Bearer sunset"},
		{"spaces inside braces", "{{ name }}", "sunset"},
		{"integral float", "n={{count}}", "n=3"},
		{"fraction", "r={{ratio}}", "r=0.5"},
		{"bool", "{{hd}}", "true"},
		{"missing", "x{{unknown}}y", "xy"},
		{"several", "{{name}}-{{count}}", "sunset-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.template, params)
			if got != tt.expected {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestRender_ArrayTakesFirstScalar(t *testing.T) {
	params := map[string]any{
		"images": []any{"https://cdn/a.png", "https://cdn/b.png"},
		"nested": []any{map[string]any{"x": 1}, "second"},
	}

	if got := Render("{{images}}", params); got != "https://cdn/a.png" {
		t.Errorf("got %q, want first element", got)
	}
	// Первый скаляр, а не первый элемент
	if got := Render("{{nested}}", params); got != "second" {
		t.Errorf("got %q, want first scalar", got)
	}
}

func TestRender_DotPathPlaceholder(t *testing.T) {
	params := map[string]any{
		"ref": map[string]any{"url": "https://cdn/ref.png"},
	}
	if got := Render("{{ref.url}}", params); got != "https://cdn/ref.png" {
		t.Errorf("got %q", got)
	}
}

func TestRenderURL_Escaping(t *testing.T) {
	params := map[string]any{
		"task_id": "abc/123",
		"prompt":  "a cat & dog",
		"base":    "https://api.vendor.io/v1",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"path segment", "https://api/tasks/{{task_id}}", "https://api/tasks/abc%2F123"},
		{"query value", "https://api/gen?prompt={{prompt}}", "https://api/gen?prompt=a+cat+%26+dog"},
		{"absolute url value", "{{base}}/tasks", "https://api.vendor.io/v1/tasks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderURL(tt.template, params)
			if got != tt.expected {
				t.Errorf("RenderURL(%q) = %q, want %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestRenderBody_TreeKeepsTypes(t *testing.T) {
	params := map[string]any{
		"prompt":   "a red fox",
		"n":        float64(2),
		"images":   []any{"a.png", "b.png"},
		"settings": map[string]any{"seed": float64(7)},
	}
	tmpl := map[string]any{
		"model":    "v2",
		"prompt":   "{{prompt}}",
		"caption":  "Draw {{prompt}}",
		"n":        "{{n}}",
		"images":   "{{images}}",
		"settings": "{{settings}}",
		"seed":     "{{missing}}",
		"list":     []any{"{{prompt}}", "{{missing}}"},
	}

	got, ok := RenderBody(tmpl, params).(map[string]any)
	if !ok {
		t.Fatalf("expected map body, got %T", RenderBody(tmpl, params))
	}

	if got["prompt"] != "a red fox" {
		t.Errorf("prompt = %v", got["prompt"])
	}
	if got["caption"] != "Draw a red fox" {
		t.Errorf("caption = %v", got["caption"])
	}
	if got["n"] != float64(2) {
		t.Errorf("n should stay a number, got %#v", got["n"])
	}
	if !reflect.DeepEqual(got["images"], []any{"a.png", "b.png"}) {
		t.Errorf("images should stay an array, got %#v", got["images"])
	}
	if !reflect.DeepEqual(got["settings"], map[string]any{"seed": float64(7)}) {
		t.Errorf("settings should stay an object, got %#v", got["settings"])
	}
	if _, exists := got["seed"]; exists {
		t.Error("field with missing placeholder should be dropped")
	}
	if !reflect.DeepEqual(got["list"], []any{"a red fox"}) {
		t.Errorf("list = %#v", got["list"])
	}
	if got["model"] != "v2" {
		t.Errorf("static value changed: %v", got["model"])
	}
}

func TestRenderBody_StringTemplateSerializesArrays(t *testing.T) {
	params := map[string]any{
		"prompt": `say "hi"`,
		"images": []any{"a.png", "b.png"},
	}
	tmpl := `{"prompt":"{{prompt}}","images":{{images}}}`

	got := RenderBody(tmpl, params)
	want := `{"prompt":"say \"hi\"","images":["a.png","b.png"]}`
	if got != want {
		t.Errorf("RenderBody = %v, want %v", got, want)
	}
}

func TestRenderBody_TemplateNotMutated(t *testing.T) {
	tmpl := map[string]any{"prompt": "{{prompt}}"}
	RenderBody(tmpl, map[string]any{"prompt": "x"})

	if tmpl["prompt"] != "{{prompt}}" {
		t.Error("template must not be modified by rendering")
	}
}

func TestMergeParams(t *testing.T) {
	defaults := map[string]any{"size": "1024x1024", "n": float64(1)}
	params := map[string]any{"n": float64(4), "prompt": "x"}

	got := MergeParams(defaults, params)
	want := map[string]any{"size": "1024x1024", "n": float64(4), "prompt": "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeParams = %v, want %v", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("https://{{host}}/v1/{{ id }}?k={{key}}")
	want := []string{"host", "id", "key"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders = %v, want %v", got, want)
	}
}
