package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/engine"
	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/tasks"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog(fields.DefaultRegistry(), tasks.DefaultRegistry(nil))
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}

	tests := []struct {
		name  string
		steps []string
	}{
		{Script, []string{"generate_script"}},
		{StoryToVideo, []string{
			"generate_script", "extract_characters", "extract_scenes",
			"generate_storyboard", "generate_frames", "generate_video",
		}},
		{CharacterPortrait, []string{"generate_image"}},
		{ImageToVideo, []string{"generate_frames", "generate_video"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := catalog.Get(tt.name)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(def.Steps) != len(tt.steps) {
				t.Fatalf("steps = %d, want %d", len(def.Steps), len(tt.steps))
			}
			for i, want := range tt.steps {
				s := def.Steps[i]
				if s.Index != i || s.Type != want || s.Handler.Type() != want || s.Build == nil {
					t.Errorf("step %d = %+v, want %s", i, s, want)
				}
			}
		})
	}

	if got := len(catalog.List()); got != 4 {
		t.Errorf("List() = %d definitions, want 4", got)
	}
}

func TestCatalog_UnknownWorkflow(t *testing.T) {
	catalog, err := DefaultCatalog(fields.DefaultRegistry(), tasks.DefaultRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := catalog.Get("nope"); !errors.Is(err, ErrUnknownWorkflow) {
		t.Errorf("expected ErrUnknownWorkflow, got %v", err)
	}
}

func TestCompile_UnregisteredFieldFailsAtLoad(t *testing.T) {
	spec := Spec{
		Name: "typo",
		Steps: []StepSpec{{
			Type:   "generate_script",
			Fields: []fields.Ref{fields.F("idea"), fields.F("ideaa")},
		}},
	}

	_, err := NewCatalog(fields.DefaultRegistry(), tasks.DefaultRegistry(nil), spec)
	if !errors.Is(err, fields.ErrUnknownField) {
		t.Fatalf("expected fields.ErrUnknownField, got %v", err)
	}
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
	if !strings.Contains(err.Error(), "ideaa") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestCompile_UnknownStepType(t *testing.T) {
	spec := Spec{Name: "bad", Steps: []StepSpec{{Type: "teleport"}}}

	_, err := Compile(spec, fields.DefaultRegistry(), tasks.DefaultRegistry(nil))
	if !errors.Is(err, tasks.ErrUnknownTaskType) {
		t.Fatalf("expected tasks.ErrUnknownTaskType, got %v", err)
	}
}

func TestCompile_EmptyAndDuplicate(t *testing.T) {
	reg, handlers := fields.DefaultRegistry(), tasks.DefaultRegistry(nil)

	if _, err := Compile(Spec{Name: "empty"}, reg, handlers); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition for no steps, got %v", err)
	}

	s := Spec{Name: "dup", Steps: []StepSpec{{Type: "generate_script"}}}
	if _, err := NewCatalog(reg, handlers, s, s); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition for duplicate, got %v", err)
	}
}

func TestImageToVideo_VideoStepRequiresFrame(t *testing.T) {
	catalog, err := DefaultCatalog(fields.DefaultRegistry(), tasks.DefaultRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	def, _ := catalog.Get(ImageToVideo)
	video, _ := def.StepAt(1)

	ctx := engine.NewContext(uuid.New(), "u-1", "", map[string]any{"prompt": "sea"})
	if _, err := video.Build(ctx); !errors.Is(err, fields.ErrResolve) {
		t.Fatalf("expected fields.ErrResolve without a frame, got %v", err)
	}

	ctx.AddStepResult(0, map[string]any{"image_url": "https://cdn/f.png"})
	input, err := video.Build(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input["image_url"] != "https://cdn/f.png" || input["user_id"] != "u-1" {
		t.Errorf("input = %v", input)
	}
	if input["video_model"] != "default-video" {
		t.Errorf("video_model default = %v", input["video_model"])
	}
}
