package fields

import (
	"errors"
	"fmt"

	"github.com/shaiso/Reel/internal/engine"
)

// BuildInput собирает входные данные шага из контекста.
type BuildInput func(ctx *engine.Context) (map[string]any, error)

// Ref — ссылка шага на поле.
//
// Голое имя (F) обязано быть в реестре. Override и Custom разрешают
// поле вне реестра и переопределяют источник, значение по умолчанию или резолвер.
type Ref struct {
	Name     string
	Source   string
	Default  any
	Resolve  Resolver
	Override bool
}

// F ссылается на поле реестра по имени.
func F(name string) Ref {
	return Ref{Name: name}
}

// Override ссылается на поле с другим источником и/или значением по умолчанию.
// Пустой source и nil def оставляют значения из реестра (если поле там есть).
func Override(name, source string, def any) Ref {
	return Ref{Name: name, Source: source, Default: def, Override: true}
}

// Custom задаёт поле через собственный резолвер.
func Custom(name string, resolve Resolver) Ref {
	return Ref{Name: name, Resolve: resolve, Override: true}
}

// Compile проверяет ссылки по реестру и возвращает BuildInput.
//
// Все неизвестные имена собираются в одну ошибку, чтобы опечатки
// были видны при загрузке определений, а не при выполнении job.
func (r *Registry) Compile(refs ...Ref) (BuildInput, error) {
	compiled := make([]Field, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	var errs []error

	for _, ref := range refs {
		if ref.Name == "" {
			errs = append(errs, ErrEmptyFieldName)
			continue
		}
		if seen[ref.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateRef, ref.Name))
			continue
		}
		seen[ref.Name] = true

		field, registered := r.Lookup(ref.Name)
		if !registered && !ref.Override {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownField, ref.Name))
			continue
		}
		if !registered {
			field = Field{Name: ref.Name}
		}

		if ref.Source != "" {
			field.Source = ref.Source
			field.Resolve = nil
		}
		if ref.Default != nil {
			field.Default = ref.Default
		}
		if ref.Resolve != nil {
			field.Resolve = ref.Resolve
		}
		compiled = append(compiled, field)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return func(ctx *engine.Context) (map[string]any, error) {
		return build(compiled, ctx)
	}, nil
}

// MustCompile — как Compile, но паникует при ошибке.
func (r *Registry) MustCompile(refs ...Ref) BuildInput {
	b, err := r.Compile(refs...)
	if err != nil {
		panic(err)
	}
	return b
}

func build(compiled []Field, ctx *engine.Context) (map[string]any, error) {
	input := make(map[string]any, len(compiled))
	for _, f := range compiled {
		var value any

		if f.Resolve != nil {
			v, err := f.Resolve(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrResolve, f.Name, err)
			}
			value = v
		} else if v, ok := ctx.Inputs[f.sourceKey()]; ok {
			value = v
		}

		if value == nil {
			value = clone(f.Default)
		}
		if value != nil {
			input[f.Name] = value
		}
	}
	return input, nil
}

// clone копирует map/slice значения по умолчанию, чтобы результат
// одного шага нельзя было изменить через реестр.
func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(x))
		for k, val := range x {
			c[k] = clone(val)
		}
		return c
	case []any:
		c := make([]any, len(x))
		for i, val := range x {
			c[i] = clone(val)
		}
		return c
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
