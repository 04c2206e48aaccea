package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// textResultKeys — где искать текст в результате текстовой модели.
var textResultKeys = []string{"text", "content", "result", "output"}

// callText вызывает текстовую модель и возвращает текст ответа.
func callText(ctx context.Context, gen Generator, req *Request, system, prompt string) (string, error) {
	model, err := requireStr(req.Input, "text_model")
	if err != nil {
		return "", err
	}

	params := map[string]any{
		"system": system,
		"prompt": prompt,
	}
	copyKeys(params, req.Input, "language", "reasoning", "user_id")

	result, err := gen.Execute(ctx, model, params, executeOptions(req, 10, 90))
	if err != nil {
		return "", err
	}

	text := firstString(result, textResultKeys...)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", ErrEmptyResult, model)
	}
	return text, nil
}

// --- generate_script ---

// ScriptHandler пишет сценарий по идее.
//
// Input: idea (или prompt), genre, language, style, text_model, reasoning.
// Output: {"script": текст, "title": заголовок}.
type ScriptHandler struct {
	gen Generator
}

// NewScriptHandler создаёт обработчик.
func NewScriptHandler(gen Generator) *ScriptHandler {
	return &ScriptHandler{gen: gen}
}

// Type реализует Handler.
func (h *ScriptHandler) Type() string { return "generate_script" }

// Execute реализует Handler.
func (h *ScriptHandler) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	idea := strings.TrimSpace(str(req.Input, "idea"))
	if idea == "" {
		idea = strings.TrimSpace(str(req.Input, "prompt"))
	}
	if idea == "" {
		return nil, fmt.Errorf("%w: idea", ErrMissingInput)
	}

	req.report(5)

	system := "You are a screenwriter. Write a short screenplay. " +
		"Start with a line 'Title: <title>'. Use scene headings and dialogue."
	prompt := fmt.Sprintf("Idea: %s\nGenre: %s\nVisual style: %s\nLanguage: %s",
		idea, str(req.Input, "genre"), str(req.Input, "style"), str(req.Input, "language"))

	script, err := callText(ctx, h.gen, req, system, prompt)
	if err != nil {
		return nil, err
	}

	title, body := splitTitle(script)
	req.report(100)

	return map[string]any{
		"script": body,
		"title":  title,
	}, nil
}

// splitTitle отделяет строку "Title: ..." (или markdown-заголовок) от текста.
func splitTitle(script string) (string, string) {
	script = strings.TrimSpace(script)
	first, rest, _ := strings.Cut(script, "\n")
	line := strings.TrimSpace(first)

	for _, prefix := range []string{"Title:", "TITLE:", "# "} {
		if strings.HasPrefix(line, prefix) {
			title := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, prefix)), `"*`)
			return title, strings.TrimSpace(rest)
		}
	}
	return "", script
}

// --- structured extraction ---

// StructuredHandler просит текстовую модель вернуть JSON-массив
// и кладёт его в результат под ключом Key.
//
// Используется для extract_characters, extract_scenes, generate_storyboard.
type StructuredHandler struct {
	gen      Generator
	taskType string

	// Key — ключ результата и ожидаемый ключ JSON-объекта ответа.
	Key string

	// Requires — обязательные поля входа.
	Requires []string

	system string
	prompt func(input map[string]any) string
}

// Type реализует Handler.
func (h *StructuredHandler) Type() string { return h.taskType }

// Execute реализует Handler.
func (h *StructuredHandler) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	for _, key := range h.Requires {
		if len(list(req.Input, key)) > 0 {
			continue
		}
		if _, err := requireStr(req.Input, key); err != nil {
			return nil, err
		}
	}

	req.report(5)

	text, err := callText(ctx, h.gen, req, h.system, h.prompt(req.Input))
	if err != nil {
		return nil, err
	}

	items, err := DecodeJSONList(text, h.Key)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no %s in model output", ErrEmptyResult, h.Key)
	}

	req.report(100)
	return map[string]any{h.Key: items}, nil
}

// NewCharactersHandler — extract_characters.
func NewCharactersHandler(gen Generator) *StructuredHandler {
	return &StructuredHandler{
		gen:      gen,
		taskType: "extract_characters",
		Key:      "characters",
		Requires: []string{"script_text"},
		system: "Extract the characters of the screenplay. Reply with JSON only: " +
			`{"characters":[{"name":"","description":"","appearance":""}]}`,
		prompt: func(in map[string]any) string {
			return str(in, "script_text")
		},
	}
}

// NewScenesHandler — extract_scenes.
func NewScenesHandler(gen Generator) *StructuredHandler {
	return &StructuredHandler{
		gen:      gen,
		taskType: "extract_scenes",
		Key:      "scenes",
		Requires: []string{"script_text"},
		system: "Split the screenplay into scenes. Reply with JSON only: " +
			`{"scenes":[{"index":1,"location":"","time":"","summary":"","characters":[]}]}`,
		prompt: func(in map[string]any) string {
			return fmt.Sprintf("At most %s scenes.\n\n%s", str(in, "scene_count"), str(in, "script_text"))
		},
	}
}

// NewStoryboardHandler — generate_storyboard.
func NewStoryboardHandler(gen Generator) *StructuredHandler {
	return &StructuredHandler{
		gen:      gen,
		taskType: "generate_storyboard",
		Key:      "storyboard",
		Requires: []string{"scenes"},
		system: "Turn the scenes into storyboard shots, one shot per scene. Reply with JSON only: " +
			`{"storyboard":[{"scene":1,"shot":"","prompt":"","camera":""}]}`,
		prompt: func(in map[string]any) string {
			return fmt.Sprintf("Visual style: %s\nAspect ratio: %s\nCharacters: %s\nScenes: %s",
				str(in, "style"), str(in, "aspect_ratio"), compactJSON(in["characters"]), compactJSON(in["scenes"]))
		},
	}
}

// DecodeJSONList разбирает JSON из ответа текстовой модели.
//
// Модели оборачивают JSON в ```json ... ``` и добавляют текст вокруг,
// поэтому берётся содержимое ограждения либо участок от первой
// скобки до последней. Принимается массив или объект с ключом key.
func DecodeJSONList(text, key string) ([]any, error) {
	body := stripCodeFence(text)

	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		start := strings.IndexAny(body, "[{")
		end := strings.LastIndexAny(body, "]}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON found", ErrBadModelOutput)
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
		}
	}

	switch v := decoded.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if items, ok := v[key].([]any); ok {
			return items, nil
		}
		return nil, fmt.Errorf("%w: object without %q array", ErrBadModelOutput, key)
	default:
		return nil, fmt.Errorf("%w: expected array or object, got %T", ErrBadModelOutput, decoded)
	}
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.Index(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func compactJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
