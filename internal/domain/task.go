package domain

import (
	"time"

	"github.com/google/uuid"
)

// CancelledMessage — текст ошибки tasks, снятых отменой job.
const CancelledMessage = "cancelled by user"

// Task — запись о выполнении одного шага job.
//
// Tasks заводятся все сразу при старте job в статусе pending,
// по одной на шаг workflow. StepIndex уникален в пределах job.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// JobID — ссылка на родительский job.
	JobID uuid.UUID `json:"job_id"`

	// StepIndex — индекс шага в workflow (с 0).
	StepIndex int `json:"step_index"`

	// StepType — тип шага, например "generate_script".
	StepType string `json:"step_type"`

	// TargetType — тип сущности, которую производит шаг: "script", "image", "video".
	TargetType string `json:"target_type,omitempty"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Progress — прогресс выполнения в процентах [0, 100].
	Progress int `json:"progress"`

	// InputParams — входные данные шага, собираются прямо перед выполнением.
	InputParams map[string]any `json:"input_params,omitempty"`

	// ResultData — результат шага. Есть только у completed.
	ResultData map[string]any `json:"result_data,omitempty"`

	// Error — текст ошибки. Есть только у failed.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время перехода в processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в completed или failed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// UpdatedAt — время последнего изменения строки.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask создаёт pending task для шага job.
func NewTask(jobID uuid.UUID, stepIndex int, stepType, targetType string) Task {
	now := time.Now().UTC()
	return Task{
		ID:         uuid.New(),
		JobID:      jobID,
		StepIndex:  stepIndex,
		StepType:   stepType,
		TargetType: targetType,
		Status:     TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// MarkProcessing переводит task в processing с собранными входными данными.
func (t *Task) MarkProcessing(input map[string]any) {
	now := time.Now().UTC()
	t.Status = TaskStatusProcessing
	t.InputParams = input
	t.Progress = 0
	t.StartedAt = &now
	t.CompletedAt = nil
	t.Error = ""
}

// MarkCompleted переводит task в completed с результатом.
func (t *Task) MarkCompleted(result map[string]any) {
	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.ResultData = result
	t.CompletedAt = &now
	t.Error = ""
}

// MarkFailed переводит task в failed с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.Error = err
	t.ResultData = nil
}

// ResetForResume возвращает task в pending для повторного выполнения.
func (t *Task) ResetForResume() {
	t.Status = TaskStatusPending
	t.Progress = 0
	t.StartedAt = nil
	t.CompletedAt = nil
	t.Error = ""
	t.ResultData = nil
}
