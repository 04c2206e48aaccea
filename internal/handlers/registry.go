package handlers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Reel/internal/provider"
)

// Factory создаёт обработчик.
type Factory func() provider.Handler

// Registry — реестр кастомных обработчиков.
//
// Обработчики создаются один раз и кэшируются: Init создаёт все известные,
// Get создаёт недостающий при первом обращении. Перезагрузки нет.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    map[string]provider.Handler
}

// NewRegistry создаёт реестр из фабрик.
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{
		factories: make(map[string]Factory, len(factories)),
		loaded:    make(map[string]provider.Handler, len(factories)),
	}
	for name, f := range factories {
		r.factories[name] = f
	}
	return r
}

// DefaultRegistry создаёт реестр со всеми стандартными обработчиками.
func DefaultRegistry(opts Options) *Registry {
	return NewRegistry(map[string]Factory{
		JWTTokenName:        func() provider.Handler { return NewJWTToken(opts.TokenTTL) },
		ReferenceImagesName: func() provider.Handler { return NewReferenceImages() },
		ReasoningModeName:   func() provider.Handler { return NewReasoningMode() },
	})
}

// Options — настройки стандартных обработчиков.
type Options struct {
	// TokenTTL — время жизни токена jwt_token (default: 30m).
	TokenTTL time.Duration
}

// Init загружает все известные обработчики.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, f := range r.factories {
		if _, ok := r.loaded[name]; ok {
			continue
		}
		h := f()
		if h == nil {
			return fmt.Errorf("%w: factory returned nil for %s", ErrHandlerNotFound, name)
		}
		r.loaded[name] = h
	}
	return nil
}

// Get возвращает обработчик по точному имени.
//
// Имя приходит из редактируемой конфигурации провайдера, поэтому
// имена с разделителями пути и ".." отклоняются.
func (r *Registry) Get(name string) (provider.Handler, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	h, ok := r.loaded[name]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.loaded[name]; ok {
		return h, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	h = f()
	r.loaded[name] = h
	return h, nil
}

// Names возвращает имена всех известных обработчиков.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateName проверяет имя обработчика.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrIllegalHandlerName)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrIllegalHandlerName, name)
	}
	return nil
}
