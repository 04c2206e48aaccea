package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — один запуск пайплайна генерации.
//
// Job создаётся вместе со всеми своими tasks (по одному на шаг workflow),
// после чего engine последовательно выполняет шаги. Ни job, ни tasks
// не удаляются движком.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// UserID — владелец job.
	UserID string `json:"user_id"`

	// ProjectID — проект, к которому относится генерация.
	ProjectID string `json:"project_id,omitempty"`

	// WorkflowType — имя workflow definition.
	WorkflowType string `json:"workflow_type"`

	// Status — текущий статус выполнения.
	Status JobStatus `json:"status"`

	// CurrentStepIndex — индекс шага, который выполняется (или упал).
	// Не уменьшается, пока job в running.
	CurrentStepIndex int `json:"current_step_index"`

	// TotalSteps — количество шагов workflow на момент создания.
	TotalSteps int `json:"total_steps"`

	// InputParams — входные параметры, начальный контекст job.
	InputParams map[string]any `json:"input_params,omitempty"`

	// Error — текст ошибки, если job в failed.
	Error string `json:"error,omitempty"`

	// Consumed — внешний потребитель уже обработал результат (сохранил, списал оплату).
	Consumed bool `json:"consumed"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время первого перехода в running.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в финальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// UpdatedAt — время последнего изменения строки.
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если job ещё не завершён.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job в финальном статусе.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в running на указанном шаге.
// StartedAt выставляется только при первом запуске.
func (j *Job) MarkRunning(stepIndex int) {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	if stepIndex > j.CurrentStepIndex {
		j.CurrentStepIndex = stepIndex
	}
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.CompletedAt = nil
	j.Error = ""
}

// MarkCompleted переводит job в completed.
func (j *Job) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Error = ""
}

// MarkFailed переводит job в failed с ошибкой.
func (j *Job) MarkFailed(err string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// MarkCancelled переводит job в cancelled.
func (j *Job) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}

// ResetForResume возвращает упавший job в running и очищает ошибку.
func (j *Job) ResetForResume() {
	j.Status = JobStatusRunning
	j.Error = ""
	j.CompletedAt = nil
}
