package handlers

import (
	"context"

	"github.com/shaiso/Reel/internal/provider"
)

// ReasoningModeName — имя обработчика в конфигурации провайдера.
const ReasoningModeName = "reasoning_mode"

const defaultReasoningBudget = 4096

// incompatibleWithReasoning — параметры сэмплирования, которые вендор
// отклоняет при включённом рассуждении.
var incompatibleWithReasoning = []string{
	"temperature",
	"top_p",
	"top_k",
	"presence_penalty",
	"frequency_penalty",
}

// ReasoningMode включает расширенное рассуждение текстовой модели.
//
// Если параметр reasoning истинный, в тело добавляется
// thinking = {"type": "enabled", "budget_tokens": N}, а несовместимые
// параметры удаляются. Иначе из тела убирается только сам reasoning.
type ReasoningMode struct{}

// NewReasoningMode создаёт обработчик.
func NewReasoningMode() *ReasoningMode {
	return &ReasoningMode{}
}

// Name реализует provider.Handler.
func (h *ReasoningMode) Name() string { return ReasoningModeName }

// Call реализует provider.Caller.
func (h *ReasoningMode) Call(ctx context.Context, call *provider.Call) ([]byte, error) {
	body, ok := call.Request.BodyMap()
	if ok {
		delete(body, "reasoning")

		if enabled(call.Params["reasoning"]) {
			budget := defaultReasoningBudget
			if n, ok := toInt(call.Params["reasoning_budget"]); ok && n > 0 {
				budget = n
			}
			body["thinking"] = map[string]any{
				"type":          "enabled",
				"budget_tokens": budget,
			}
			for _, field := range incompatibleWithReasoning {
				delete(body, field)
			}
		}
	}
	return call.Send(ctx, call.Request)
}

func enabled(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1" || x == "on" || x == "enabled"
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return false
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}
