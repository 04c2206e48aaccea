package engine

import (
	"sort"

	"github.com/google/uuid"
)

// Context — контекст сборки входных данных шага.
//
// Собирается engine'ом перед каждым шагом из job и всех completed tasks.
type Context struct {
	// JobID — идентификатор job.
	JobID uuid.UUID

	// UserID — владелец job (поле engine'а, в input его нет).
	UserID string

	// ProjectID — проект job.
	ProjectID string

	// Inputs — входные параметры job.
	Inputs map[string]any

	// Steps — результаты completed tasks по индексу шага.
	Steps map[int]map[string]any
}

// NewContext создаёт контекст с входными параметрами.
func NewContext(jobID uuid.UUID, userID, projectID string, inputs map[string]any) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Context{
		JobID:     jobID,
		UserID:    userID,
		ProjectID: projectID,
		Inputs:    inputs,
		Steps:     make(map[int]map[string]any),
	}
}

// AddStepResult добавляет результат выполненного шага.
func (c *Context) AddStepResult(stepIndex int, result map[string]any) {
	if result == nil {
		result = make(map[string]any)
	}
	c.Steps[stepIndex] = result
}

// StepResult возвращает результат шага по индексу.
func (c *Context) StepResult(stepIndex int) (map[string]any, bool) {
	r, ok := c.Steps[stepIndex]
	return r, ok
}

// Latest возвращает значение key из самого позднего шага, где оно есть.
func (c *Context) Latest(key string) (any, bool) {
	indexes := make([]int, 0, len(c.Steps))
	for i := range c.Steps {
		indexes = append(indexes, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indexes)))

	for _, i := range indexes {
		if v, ok := c.Steps[i][key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Input возвращает входной параметр job.
func (c *Context) Input(key string) (any, bool) {
	v, ok := c.Inputs[key]
	return v, ok
}
