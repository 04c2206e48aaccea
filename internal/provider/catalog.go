package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/engine"
)

// Catalog — источник конфигураций провайдеров.
// Конфигурация только читается: адаптер её никогда не меняет.
type Catalog interface {
	Provider(ctx context.Context, name string) (*domain.ProviderConfig, error)
}

// StaticCatalog — каталог в памяти (из файла или собранный в коде).
type StaticCatalog struct {
	mu        sync.RWMutex
	providers map[string]*domain.ProviderConfig
}

// NewStaticCatalog создаёт каталог из списка конфигураций.
// Каждая конфигурация проверяется Validate; дубликаты имён запрещены.
func NewStaticCatalog(configs ...domain.ProviderConfig) (*StaticCatalog, error) {
	c := &StaticCatalog{providers: make(map[string]*domain.ProviderConfig, len(configs))}

	var errs []error
	for i := range configs {
		cfg := configs[i]
		if err := Validate(&cfg); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.providers[cfg.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate provider %q", ErrInvalidConfig, cfg.Name))
			continue
		}
		c.providers[cfg.Name] = &cfg
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Provider возвращает копию конфигурации по имени модели.
func (c *StaticCatalog) Provider(_ context.Context, name string) (*domain.ProviderConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	cp := *cfg
	return &cp, nil
}

// List возвращает все конфигурации, отсортированные по имени.
func (c *StaticCatalog) List() []domain.ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.ProviderConfig, 0, len(c.providers))
	for _, cfg := range c.providers {
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// catalogFile — формат файла каталога:
//
//	[[providers]]
//	name = "default-text"
//	url_template = "https://api.example.com/v1/chat"
//	...
type catalogFile struct {
	Providers []domain.ProviderConfig `toml:"providers"`
}

// DecodeCatalog читает конфигурации провайдеров из TOML.
func DecodeCatalog(r io.Reader) ([]domain.ProviderConfig, error) {
	var f catalogFile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: toml %d:%d: %v", ErrInvalidConfig, row, col, derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return f.Providers, nil
}

// LoadCatalogFile загружает каталог из TOML-файла.
func LoadCatalogFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	configs, err := DecodeCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStaticCatalog(configs...)
}

// Validate проверяет конфигурацию провайдера.
//
// Проверяется то, что иначе всплыло бы только во время вызова:
// обязательные поля и синтаксис условий асинхронного провайдера.
func Validate(cfg *domain.ProviderConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: provider name is required", ErrInvalidConfig)
	}
	if cfg.URLTemplate == "" && cfg.CustomHandler == "" {
		return fmt.Errorf("%w: %s: url_template is required", ErrInvalidConfig, cfg.Name)
	}

	if !cfg.IsAsync() {
		return nil
	}

	if cfg.QuerySuccessCondition == "" {
		return fmt.Errorf("%w: %s: async provider requires query_success_condition", ErrInvalidConfig, cfg.Name)
	}
	if _, err := engine.ParseCondition(cfg.QuerySuccessCondition); err != nil {
		return fmt.Errorf("%w: %s: query_success_condition: %v", ErrInvalidConfig, cfg.Name, err)
	}
	if _, err := engine.ParseCondition(cfg.QueryFailCondition); err != nil {
		return fmt.Errorf("%w: %s: query_fail_condition: %v", ErrInvalidConfig, cfg.Name, err)
	}
	return nil
}
