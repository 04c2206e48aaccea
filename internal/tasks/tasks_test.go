package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shaiso/Reel/internal/provider"
)

// fakeGenerator отвечает по имени модели и запоминает вызовы.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     []fakeCall
	responses map[string]func(params map[string]any) (map[string]any, error)
}

type fakeCall struct {
	model  string
	params map[string]any
	opts   provider.ExecuteOptions
}

func (f *fakeGenerator) Execute(_ context.Context, model string, params map[string]any, opts provider.ExecuteOptions) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: model, params: params, opts: opts})
	f.mu.Unlock()

	respond, ok := f.responses[model]
	if !ok {
		return nil, provider.ErrModelNotFound
	}
	return respond(params)
}

func constant(result map[string]any) func(map[string]any) (map[string]any, error) {
	return func(map[string]any) (map[string]any, error) { return result, nil }
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(&fakeGenerator{})

	want := []string{
		"extract_characters", "extract_scenes", "generate_frames", "generate_image",
		"generate_script", "generate_storyboard", "generate_video",
	}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}
}

func TestScriptHandler(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"text-1": constant(map[string]any{"text": "Title: The Lighthouse\n\nINT. TOWER - NIGHT\nA keeper waits."}),
	}}

	var progress []int
	result, err := NewScriptHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{
			"idea":       "a lonely lighthouse keeper",
			"genre":      "drama",
			"text_model": "text-1",
			"reasoning":  true,
		},
		Progress: func(p int) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result["title"] != "The Lighthouse" {
		t.Errorf("title = %v", result["title"])
	}
	if result["script"] != "INT. TOWER - NIGHT\nA keeper waits." {
		t.Errorf("script = %q", result["script"])
	}
	if gen.calls[0].params["reasoning"] != true {
		t.Error("reasoning flag should be passed to the text model")
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", progress)
	}
}

func TestScriptHandler_MissingIdea(t *testing.T) {
	_, err := NewScriptHandler(&fakeGenerator{}).Execute(context.Background(), &Request{
		Input: map[string]any{"text_model": "text-1"},
	})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestCharactersHandler_DecodesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"text-1": constant(map[string]any{"text": "Sure!\n```json\n{\"characters\":[{\"name\":\"Ada\"},{\"name\":\"Bob\"}]}\n```"}),
	}}

	result, err := NewCharactersHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{"script_text": "...", "text_model": "text-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	characters, ok := result["characters"].([]any)
	if !ok || len(characters) != 2 {
		t.Fatalf("characters = %v", result["characters"])
	}
}

func TestStoryboardHandler_RequiresScenes(t *testing.T) {
	_, err := NewStoryboardHandler(&fakeGenerator{}).Execute(context.Background(), &Request{
		Input: map[string]any{"text_model": "text-1"},
	})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestDecodeJSONList(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
		wantErr bool
	}{
		{"bare array", `[{"a":1},{"a":2}]`, 2, false},
		{"object with key", `{"scenes":[1,2,3]}`, 3, false},
		{"fenced", "```json\n[1]\n```", 1, false},
		{"surrounding prose", "Here you go: [1, 2] hope it helps", 2, false},
		{"wrong key", `{"other":[1]}`, 0, true},
		{"no json", "I cannot do that", 0, true},
		{"scalar", `42`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := DecodeJSONList(tt.text, "scenes")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrBadModelOutput) {
					t.Errorf("expected ErrBadModelOutput, got %v", err)
				}
				return
			}
			if len(items) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(items), tt.wantLen)
			}
		})
	}
}

func TestImageHandler(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"img-1": constant(map[string]any{"images": []any{map[string]any{"url": "https://cdn/1.png"}}}),
	}}

	result, err := NewImageHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{"prompt": "a knight", "style": "anime", "image_model": "img-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["image_url"] != "https://cdn/1.png" {
		t.Errorf("image_url = %v", result["image_url"])
	}
	if got := gen.calls[0].params["prompt"]; got != "a knight, anime style" {
		t.Errorf("prompt = %v", got)
	}
}

func TestFramesHandler_OnePerShot(t *testing.T) {
	n := 0
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"img-1": func(params map[string]any) (map[string]any, error) {
			n++
			return map[string]any{"url": "https://cdn/" + params["prompt"].(string)}, nil
		},
	}}

	result, err := NewFramesHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{
			"image_model": "img-1",
			"storyboard": []any{
				map[string]any{"prompt": "shot-a"},
				map[string]any{"shot": "shot-b"},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	images := result["images"].([]any)
	if n != 2 || len(images) != 2 {
		t.Fatalf("expected 2 frames, got %v", images)
	}
	if result["image_url"] != "https://cdn/shot-a" {
		t.Errorf("image_url = %v", result["image_url"])
	}
	// Прогресс второго кадра начинается после первого
	if gen.calls[1].opts.ProgressStart <= gen.calls[0].opts.ProgressStart {
		t.Errorf("progress windows overlap: %+v", gen.calls)
	}
}

func TestFramesHandler_FailsWithFrameNumber(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"img-1": func(map[string]any) (map[string]any, error) { return nil, provider.ErrProviderTimeout },
	}}

	_, err := NewFramesHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{"image_model": "img-1", "prompt": "x"},
	})
	if !errors.Is(err, provider.ErrProviderTimeout) {
		t.Fatalf("expected ErrProviderTimeout, got %v", err)
	}
}

func TestVideoHandler(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"vid-1": constant(map[string]any{"video_url": "https://cdn/v.mp4", "cover": "https://cdn/c.jpg"}),
	}}

	result, err := NewVideoHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{
			"video_model": "vid-1",
			"image_url":   "https://cdn/f.png",
			"storyboard":  []any{map[string]any{"prompt": "waves crash"}},
			"duration":    float64(5),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result["video_url"] != "https://cdn/v.mp4" || result["cover_url"] != "https://cdn/c.jpg" {
		t.Errorf("result = %v", result)
	}

	params := gen.calls[0].params
	if params["prompt"] != "waves crash" {
		t.Errorf("prompt = %v, want first storyboard shot", params["prompt"])
	}
	refs, _ := params["reference_images"].([]any)
	if len(refs) != 1 || refs[0] != "https://cdn/f.png" {
		t.Errorf("reference_images = %v", params["reference_images"])
	}
	if opts := gen.calls[0].opts; opts.ProgressStart != 5 || opts.ProgressEnd != 95 {
		t.Errorf("progress window = %d..%d", opts.ProgressStart, opts.ProgressEnd)
	}
}

func TestVideoHandler_EmptyResult(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]func(map[string]any) (map[string]any, error){
		"vid-1": constant(map[string]any{"status": "ok"}),
	}}

	_, err := NewVideoHandler(gen).Execute(context.Background(), &Request{
		Input: map[string]any{"video_model": "vid-1", "prompt": "x"},
	})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}
