package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/provider"
)

// Handler — обработчик одного типа шага.
type Handler interface {
	// Type возвращает тип шага ("generate_script", ...).
	Type() string

	// Execute выполняет шаг и возвращает результат.
	// Обработчик должен проверять ctx.Done().
	Execute(ctx context.Context, req *Request) (map[string]any, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	JobID     uuid.UUID
	StepIndex int

	// Input — собранные входные данные шага.
	Input map[string]any

	// Progress сообщает прогресс шага 0-100. Может быть nil.
	Progress func(percent int)
}

// report вызывает Progress, если он задан.
func (r *Request) report(percent int) {
	if r.Progress != nil {
		r.Progress(percent)
	}
}

// Generator вызывает модель по имени. Реализуется provider.Adapter.
type Generator interface {
	Execute(ctx context.Context, model string, params map[string]any, opts provider.ExecuteOptions) (map[string]any, error)
}

// Registry — реестр обработчиков по типу шага. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry создаёт реестр со всеми стандартными обработчиками.
func DefaultRegistry(gen Generator) *Registry {
	r := NewRegistry()

	r.Register(NewScriptHandler(gen))
	r.Register(NewCharactersHandler(gen))
	r.Register(NewScenesHandler(gen))
	r.Register(NewStoryboardHandler(gen))
	r.Register(NewImageHandler(gen))
	r.Register(NewFramesHandler(gen))
	r.Register(NewVideoHandler(gen))

	return r
}

// Register регистрирует обработчик. Обработчик того же типа перезаписывается.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get возвращает обработчик по типу шага.
func (r *Registry) Get(taskType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return h, nil
}

// Types возвращает зарегистрированные типы шагов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
