package engine

import (
	"testing"

	"github.com/google/uuid"
)

func TestContext_Latest(t *testing.T) {
	ctx := NewContext(uuid.New(), "u1", "p1", nil)
	if ctx.Inputs == nil {
		t.Fatal("Inputs should not be nil")
	}

	ctx.AddStepResult(0, map[string]any{"script": "v1"})
	ctx.AddStepResult(2, map[string]any{"script": "v3"})
	ctx.AddStepResult(1, map[string]any{"characters": []any{"a"}})

	v, ok := ctx.Latest("script")
	if !ok || v != "v3" {
		t.Errorf("Latest(script) = %v, %v, want v3", v, ok)
	}
	if _, ok := ctx.Latest("video_url"); ok {
		t.Error("Latest should report missing key")
	}

	ctx.AddStepResult(3, nil)
	if r, ok := ctx.StepResult(3); !ok || r == nil {
		t.Error("nil result should be stored as empty map")
	}
}
