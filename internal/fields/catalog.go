package fields

// DefaultRegistry возвращает каталог полей пайплайнов генерации контента.
func DefaultRegistry() *Registry {
	return MustRegistry(
		// Поля engine'а
		Field{Name: "user_id", Resolve: UserID, Description: "owner of the job"},
		Field{Name: "project_id", Resolve: ProjectID, Description: "project the generation belongs to"},
		Field{Name: "job_id", Resolve: JobID, Description: "job identifier"},

		// Творческие параметры
		Field{Name: "idea", Default: "", Description: "free-form story idea"},
		Field{Name: "prompt", Default: "", Description: "direct prompt for a single generation"},
		Field{Name: "genre", Default: "drama", Description: "story genre"},
		Field{Name: "language", Default: "en", Description: "output language"},
		Field{Name: "style", Default: "cinematic", Description: "visual style"},
		Field{Name: "aspect_ratio", Default: "16:9", Description: "frame aspect ratio"},
		Field{Name: "duration", Default: float64(5), Description: "video duration in seconds"},
		Field{Name: "scene_count", Default: float64(6), Description: "number of scenes to extract"},
		Field{Name: "negative_prompt", Default: "", Description: "what the image must not contain"},
		Field{Name: "reference_images", Default: []any{}, Description: "reference image URLs"},
		Field{Name: "reasoning", Default: false, Description: "enable extended reasoning on text models"},

		// Модели
		Field{Name: "text_model", Default: "default-text", Description: "provider config name for text steps"},
		Field{Name: "image_model", Default: "default-image", Description: "provider config name for image steps"},
		Field{Name: "video_model", Default: "default-video", Description: "provider config name for video steps"},

		// Результаты прошлых шагов
		Field{Name: "script_text", Resolve: FromInputOrLatest("script"), Description: "script text from input or the script step"},
		Field{Name: "characters", Resolve: FromLatest("characters"), Description: "characters extracted from the script"},
		Field{Name: "scenes", Resolve: FromLatest("scenes"), Description: "scenes extracted from the script"},
		Field{Name: "storyboard", Resolve: FromLatest("storyboard"), Description: "storyboard shots"},
		Field{Name: "image_url", Resolve: FromInputOrLatest("image_url"), Description: "source frame for video steps"},
	)
}
