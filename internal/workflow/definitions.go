package workflow

import (
	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/tasks"
)

// Имена стандартных пайплайнов.
const (
	Script            = "script"
	StoryToVideo      = "story_to_video"
	CharacterPortrait = "character_portrait"
	ImageToVideo      = "image_to_video"
)

var (
	scriptStep = StepSpec{
		Type:       "generate_script",
		TargetType: "script",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("idea"), fields.F("prompt"), fields.F("genre"),
			fields.F("language"), fields.F("style"), fields.F("text_model"), fields.F("reasoning"),
		},
	}

	charactersStep = StepSpec{
		Type:       "extract_characters",
		TargetType: "character",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("script_text"), fields.F("language"),
			fields.F("text_model"), fields.F("reasoning"),
		},
	}

	scenesStep = StepSpec{
		Type:       "extract_scenes",
		TargetType: "scene",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("script_text"), fields.F("scene_count"),
			fields.F("language"), fields.F("text_model"),
		},
	}

	storyboardStep = StepSpec{
		Type:       "generate_storyboard",
		TargetType: "storyboard",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("scenes"), fields.F("characters"), fields.F("style"),
			fields.F("aspect_ratio"), fields.F("language"), fields.F("text_model"),
		},
	}

	framesStep = StepSpec{
		Type:       "generate_frames",
		TargetType: "frame",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("storyboard"), fields.F("prompt"), fields.F("style"),
			fields.F("aspect_ratio"), fields.F("negative_prompt"), fields.F("image_model"),
		},
	}

	videoStep = StepSpec{
		Type:       "generate_video",
		TargetType: "video",
		Fields: []fields.Ref{
			fields.F("user_id"), fields.F("image_url"), fields.F("storyboard"), fields.F("prompt"),
			fields.F("duration"), fields.F("aspect_ratio"), fields.F("negative_prompt"),
			fields.F("reference_images"), fields.F("video_model"),
		},
	}
)

// DefaultSpecs возвращает описания стандартных пайплайнов.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Name:        Script,
			Description: "screenplay from an idea",
			Steps:       []StepSpec{scriptStep},
		},
		{
			Name:        StoryToVideo,
			Description: "idea to script, characters, scenes, storyboard, frames and video",
			Steps:       []StepSpec{scriptStep, charactersStep, scenesStep, storyboardStep, framesStep, videoStep},
		},
		{
			Name:        CharacterPortrait,
			Description: "single character portrait",
			Steps: []StepSpec{{
				Type:       "generate_image",
				TargetType: "character",
				Fields: []fields.Ref{
					fields.F("user_id"),
					fields.F("prompt"),
					fields.F("style"), fields.F("negative_prompt"), fields.F("reference_images"),
					fields.Override("aspect_ratio", "", "1:1"),
					fields.F("image_model"),
				},
			}},
		},
		{
			Name:        ImageToVideo,
			Description: "one frame from a prompt, then a video from that frame",
			Steps: []StepSpec{
				framesStep,
				{
					Type:       "generate_video",
					TargetType: "video",
					Fields: []fields.Ref{
						fields.F("user_id"),
						fields.Custom("image_url", fields.RequireLatest("image_url")),
						fields.F("prompt"), fields.F("duration"), fields.F("aspect_ratio"),
						fields.F("negative_prompt"), fields.F("video_model"),
					},
				},
			},
		},
	}
}

// DefaultCatalog компилирует стандартные пайплайны.
func DefaultCatalog(registry *fields.Registry, handlers *tasks.Registry) (*Catalog, error) {
	return NewCatalog(registry, handlers, DefaultSpecs()...)
}
