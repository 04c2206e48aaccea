package fields

import (
	"fmt"

	"github.com/shaiso/Reel/internal/engine"
)

// UserID отдаёт владельца job.
func UserID(ctx *engine.Context) (any, error) {
	return ctx.UserID, nil
}

// ProjectID отдаёт проект job.
func ProjectID(ctx *engine.Context) (any, error) {
	if ctx.ProjectID == "" {
		return nil, nil
	}
	return ctx.ProjectID, nil
}

// JobID отдаёт идентификатор job.
func JobID(ctx *engine.Context) (any, error) {
	return ctx.JobID.String(), nil
}

// FromLatest берёт key из самого позднего выполненного шага.
func FromLatest(key string) Resolver {
	return func(ctx *engine.Context) (any, error) {
		v, _ := ctx.Latest(key)
		return v, nil
	}
}

// FromInputOrLatest берёт key из входных параметров job, иначе из прошлых шагов.
func FromInputOrLatest(key string) Resolver {
	return func(ctx *engine.Context) (any, error) {
		if v, ok := ctx.Input(key); ok && v != nil {
			return v, nil
		}
		v, _ := ctx.Latest(key)
		return v, nil
	}
}

// FromStep берёт key из результата конкретного шага. Шаг обязан быть выполнен.
func FromStep(stepIndex int, key string) Resolver {
	return func(ctx *engine.Context) (any, error) {
		result, ok := ctx.StepResult(stepIndex)
		if !ok {
			return nil, fmt.Errorf("step %d has no result", stepIndex)
		}
		return result[key], nil
	}
}

// RequireLatest как FromLatest, но ошибка, если значения нет ни в одном шаге.
func RequireLatest(key string) Resolver {
	return func(ctx *engine.Context) (any, error) {
		v, ok := ctx.Latest(key)
		if !ok {
			return nil, fmt.Errorf("no prior step produced %q", key)
		}
		return v, nil
	}
}
