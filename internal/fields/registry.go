package fields

import (
	"fmt"
	"sort"

	"github.com/shaiso/Reel/internal/engine"
)

// Resolver вычисляет значение поля из контекста шага.
// Может читать результаты прошлых шагов и поля engine'а (user_id и т.п.).
type Resolver func(ctx *engine.Context) (any, error)

// Field — запись реестра полей.
type Field struct {
	// Name — имя поля во входных данных шага.
	Name string

	// Source — ключ во входных параметрах job. Пусто — совпадает с Name.
	Source string

	// Default — значение, если в job его нет.
	Default any

	// Resolve — кастомный резолвер. Если задан, Source не используется.
	Resolve Resolver

	// Description — описание для людей.
	Description string
}

// sourceKey возвращает ключ во входных параметрах job.
func (f Field) sourceKey() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// Registry — закрытый каталог полей. Неизменяем после создания.
type Registry struct {
	fields map[string]Field
}

// NewRegistry создаёт реестр из набора полей.
func NewRegistry(fields ...Field) (*Registry, error) {
	r := &Registry{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, ErrEmptyFieldName
		}
		if _, exists := r.fields[f.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		r.fields[f.Name] = f
	}
	return r, nil
}

// MustRegistry — как NewRegistry, но паникует при ошибке.
// Для статических каталогов, объявленных в коде.
func MustRegistry(fields ...Field) *Registry {
	r, err := NewRegistry(fields...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup возвращает поле по имени.
func (r *Registry) Lookup(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Has проверяет наличие поля.
func (r *Registry) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Names возвращает имена всех полей в алфавитном порядке.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len возвращает количество полей.
func (r *Registry) Len() int {
	return len(r.fields)
}
