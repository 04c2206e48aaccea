package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/tasks"
)

// Ошибки определений.
var (
	// ErrUnknownWorkflow — определения с таким именем нет.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrInvalidDefinition — определение не компилируется.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// Spec — декларативное описание пайплайна.
type Spec struct {
	Name        string
	Description string
	Steps       []StepSpec
}

// StepSpec — декларативное описание шага.
type StepSpec struct {
	// Type — тип шага, по нему выбирается tasks.Handler.
	Type string

	// TargetType — что производит шаг ("script", "character", "video", ...).
	TargetType string

	// Fields — ссылки на поля реестра, из которых собирается вход шага.
	Fields []fields.Ref
}

// Definition — скомпилированный пайплайн.
type Definition struct {
	Name        string
	Description string
	Steps       []Step
}

// Step — скомпилированный шаг.
type Step struct {
	Index      int
	Type       string
	TargetType string
	Build      fields.BuildInput
	Handler    tasks.Handler
}

// StepAt возвращает шаг по индексу.
func (d *Definition) StepAt(index int) (*Step, bool) {
	if index < 0 || index >= len(d.Steps) {
		return nil, false
	}
	return &d.Steps[index], true
}

// Compile компилирует описание пайплайна.
func Compile(spec Spec, registry *fields.Registry, handlers *tasks.Registry) (*Definition, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s: no steps", ErrInvalidDefinition, spec.Name)
	}

	def := &Definition{
		Name:        spec.Name,
		Description: spec.Description,
		Steps:       make([]Step, 0, len(spec.Steps)),
	}

	var errs []error
	for i, s := range spec.Steps {
		handler, err := handlers.Get(s.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, err))
			continue
		}

		build, err := registry.Compile(s.Fields...)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Type, err))
			continue
		}

		def.Steps = append(def.Steps, Step{
			Index:      i,
			Type:       s.Type,
			TargetType: s.TargetType,
			Build:      build,
			Handler:    handler,
		})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, spec.Name, errors.Join(errs...))
	}
	return def, nil
}

// Catalog — набор скомпилированных пайплайнов.
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog компилирует все описания. Ошибки собираются в одну.
func NewCatalog(registry *fields.Registry, handlers *tasks.Registry, specs ...Spec) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition, len(specs))}

	var errs []error
	for _, spec := range specs {
		if _, dup := c.defs[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate workflow %q", ErrInvalidDefinition, spec.Name))
			continue
		}
		def, err := Compile(spec, registry, handlers)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.defs[def.Name] = def
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Get возвращает пайплайн по имени.
func (c *Catalog) Get(name string) (*Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return def, nil
}

// List возвращает все пайплайны, отсортированные по имени.
func (c *Catalog) List() []*Definition {
	out := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
