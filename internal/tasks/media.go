package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Reel/internal/provider"
)

// Где искать ссылки в результатах моделей изображений и видео.
var (
	imageResultKeys = []string{"image_url", "url", "images", "data"}
	videoResultKeys = []string{"video_url", "url", "videos", "data"}
	coverResultKeys = []string{"cover_url", "cover", "thumbnail_url"}
)

// executeOptions масштабирует прогресс опроса провайдера в [start, end] шага.
func executeOptions(req *Request, start, end int) provider.ExecuteOptions {
	return provider.ExecuteOptions{
		ProgressStart: start,
		ProgressEnd:   end,
		OnProgress:    req.Progress,
	}
}

// imageParams собирает параметры вызова модели изображений.
func imageParams(input map[string]any, prompt string) map[string]any {
	if style := str(input, "style"); style != "" {
		prompt = prompt + ", " + style + " style"
	}
	params := map[string]any{"prompt": prompt}
	copyKeys(params, input, "negative_prompt", "aspect_ratio", "user_id")
	if refs := list(input, "reference_images"); len(refs) > 0 {
		params["reference_images"] = refs
	}
	return params
}

// imageURLs достаёт все ссылки на изображения из результата.
func imageURLs(result map[string]any) []any {
	var urls []any
	for _, item := range list(result, "images") {
		if s := asString(item); s != "" {
			urls = append(urls, s)
		}
	}
	if len(urls) > 0 {
		return urls
	}
	if s := firstString(result, imageResultKeys...); s != "" {
		return []any{s}
	}
	return nil
}

// --- generate_image ---

// ImageHandler генерирует одно изображение по prompt.
//
// Input: prompt, style, negative_prompt, aspect_ratio, reference_images, image_model.
// Output: {"images": [...], "image_url": первая ссылка}.
type ImageHandler struct {
	gen Generator
}

// NewImageHandler создаёт обработчик.
func NewImageHandler(gen Generator) *ImageHandler {
	return &ImageHandler{gen: gen}
}

// Type реализует Handler.
func (h *ImageHandler) Type() string { return "generate_image" }

// Execute реализует Handler.
func (h *ImageHandler) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	model, err := requireStr(req.Input, "image_model")
	if err != nil {
		return nil, err
	}
	prompt, err := requireStr(req.Input, "prompt")
	if err != nil {
		return nil, err
	}

	req.report(5)
	result, err := h.gen.Execute(ctx, model, imageParams(req.Input, prompt), executeOptions(req, 10, 95))
	if err != nil {
		return nil, err
	}

	urls := imageURLs(result)
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s returned no image", ErrEmptyResult, model)
	}
	req.report(100)

	return map[string]any{
		"images":    urls,
		"image_url": urls[0],
	}, nil
}

// --- generate_frames ---

// FramesHandler генерирует по кадру на каждый кадр раскадровки.
// Без раскадровки генерирует один кадр по prompt.
//
// Кадры генерируются последовательно, прогресс делится поровну между ними.
// Output: {"images": [...], "image_url": первый кадр}.
type FramesHandler struct {
	gen Generator
}

// NewFramesHandler создаёт обработчик.
func NewFramesHandler(gen Generator) *FramesHandler {
	return &FramesHandler{gen: gen}
}

// Type реализует Handler.
func (h *FramesHandler) Type() string { return "generate_frames" }

// Execute реализует Handler.
func (h *FramesHandler) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	model, err := requireStr(req.Input, "image_model")
	if err != nil {
		return nil, err
	}

	prompts := shotPrompts(list(req.Input, "storyboard"))
	if len(prompts) == 0 {
		prompt, err := requireStr(req.Input, "prompt")
		if err != nil {
			return nil, fmt.Errorf("%w: storyboard or prompt", ErrMissingInput)
		}
		prompts = []string{prompt}
	}

	images := make([]any, 0, len(prompts))
	share := 90 / len(prompts)

	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := 5 + i*share
		result, err := h.gen.Execute(ctx, model, imageParams(req.Input, prompt), executeOptions(req, start, start+share))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}

		urls := imageURLs(result)
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: frame %d: %s returned no image", ErrEmptyResult, i+1, model)
		}
		images = append(images, urls[0])
		req.report(start + share)
	}

	req.report(100)
	return map[string]any{
		"images":    images,
		"image_url": images[0],
	}, nil
}

// shotPrompts достаёт prompt каждого кадра раскадровки.
func shotPrompts(storyboard []any) []string {
	prompts := make([]string, 0, len(storyboard))
	for _, item := range storyboard {
		switch shot := item.(type) {
		case string:
			if s := strings.TrimSpace(shot); s != "" {
				prompts = append(prompts, s)
			}
		case map[string]any:
			for _, key := range []string{"prompt", "shot", "description"} {
				if s := strings.TrimSpace(str(shot, key)); s != "" {
					prompts = append(prompts, s)
					break
				}
			}
		}
	}
	return prompts
}

// --- generate_video ---

// VideoHandler генерирует видео из кадра.
//
// Input: image_url и/или prompt, storyboard, duration, aspect_ratio,
// reference_images, video_model.
// Output: {"video_url": ..., "cover_url": ...}. cover_url только если модель его вернула.
type VideoHandler struct {
	gen Generator
}

// NewVideoHandler создаёт обработчик.
func NewVideoHandler(gen Generator) *VideoHandler {
	return &VideoHandler{gen: gen}
}

// Type реализует Handler.
func (h *VideoHandler) Type() string { return "generate_video" }

// Execute реализует Handler.
func (h *VideoHandler) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	model, err := requireStr(req.Input, "video_model")
	if err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(str(req.Input, "prompt"))
	if prompt == "" {
		if shots := shotPrompts(list(req.Input, "storyboard")); len(shots) > 0 {
			prompt = shots[0]
		}
	}
	imageURL := strings.TrimSpace(str(req.Input, "image_url"))
	if prompt == "" && imageURL == "" {
		return nil, fmt.Errorf("%w: image_url or prompt", ErrMissingInput)
	}

	params := map[string]any{"prompt": prompt}
	copyKeys(params, req.Input, "duration", "aspect_ratio", "negative_prompt", "user_id")
	if imageURL != "" {
		params["image_url"] = imageURL
	}
	refs := list(req.Input, "reference_images")
	if len(refs) == 0 && imageURL != "" {
		refs = []any{imageURL}
	}
	if len(refs) > 0 {
		params["reference_images"] = refs
	}

	req.report(2)
	result, err := h.gen.Execute(ctx, model, params, executeOptions(req, 5, 95))
	if err != nil {
		return nil, err
	}

	videoURL := firstString(result, videoResultKeys...)
	if videoURL == "" {
		return nil, fmt.Errorf("%w: %s returned no video", ErrEmptyResult, model)
	}
	req.report(100)

	out := map[string]any{"video_url": videoURL}
	if cover := firstString(result, coverResultKeys...); cover != "" {
		out["cover_url"] = cover
	}
	return out, nil
}
