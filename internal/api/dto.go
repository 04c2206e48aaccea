package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/orchestrator"
	"github.com/shaiso/Reel/internal/workflow"
)

// Workflow DTOs

// WorkflowResponse — описание пайплайна.
type WorkflowResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []StepResponse `json:"steps"`
}

// StepResponse — шаг пайплайна.
type StepResponse struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	TargetType string `json:"target_type,omitempty"`
}

// WorkflowFromDefinition конвертирует workflow.Definition в WorkflowResponse.
func WorkflowFromDefinition(d *workflow.Definition) WorkflowResponse {
	steps := make([]StepResponse, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = StepResponse{Index: s.Index, Type: s.Type, TargetType: s.TargetType}
	}
	return WorkflowResponse{Name: d.Name, Description: d.Description, Steps: steps}
}

// Job DTOs

// StartJobRequest — запрос на запуск пайплайна.
type StartJobRequest struct {
	ProjectID string         `json:"project_id,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
}

// StartJobResponse — ответ на запуск: id job и заведённые tasks.
type StartJobResponse struct {
	JobID uuid.UUID     `json:"job_id"`
	Tasks []TaskSummary `json:"tasks"`
	Job   JobResponse   `json:"job"`
}

// TaskSummary — краткое описание task.
type TaskSummary struct {
	ID        uuid.UUID `json:"id"`
	StepIndex int       `json:"step_index"`
	StepType  string    `json:"step_type"`
	Status    string    `json:"status"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID               uuid.UUID      `json:"id"`
	UserID           string         `json:"user_id"`
	ProjectID        string         `json:"project_id,omitempty"`
	WorkflowType     string         `json:"workflow_type"`
	Status           string         `json:"status"`
	CurrentStepIndex int            `json:"current_step_index"`
	TotalSteps       int            `json:"total_steps"`
	InputParams      map[string]any `json:"input_params,omitempty"`
	Error            string         `json:"error,omitempty"`
	Consumed         bool           `json:"consumed"`
	CreatedAt        time.Time      `json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j *domain.Job) JobResponse {
	return JobResponse{
		ID:               j.ID,
		UserID:           j.UserID,
		ProjectID:        j.ProjectID,
		WorkflowType:     j.WorkflowType,
		Status:           string(j.Status),
		CurrentStepIndex: j.CurrentStepIndex,
		TotalSteps:       j.TotalSteps,
		InputParams:      j.InputParams,
		Error:            j.Error,
		Consumed:         j.Consumed,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID          uuid.UUID      `json:"id"`
	StepIndex   int            `json:"step_index"`
	StepType    string         `json:"step_type"`
	TargetType  string         `json:"target_type,omitempty"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	InputParams map[string]any `json:"input_params,omitempty"`
	ResultData  map[string]any `json:"result_data,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		StepIndex:   t.StepIndex,
		StepType:    t.StepType,
		TargetType:  t.TargetType,
		Status:      string(t.Status),
		Progress:    t.Progress,
		InputParams: t.InputParams,
		ResultData:  t.ResultData,
		Error:       t.Error,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// JobStatusResponse — job вместе с tasks.
type JobStatusResponse struct {
	Job   JobResponse    `json:"job"`
	Tasks []TaskResponse `json:"tasks"`
}

// JobStatusFromView конвертирует orchestrator.JobView в JobStatusResponse.
func JobStatusFromView(v *orchestrator.JobView) JobStatusResponse {
	tasks := make([]TaskResponse, len(v.Tasks))
	for i, t := range v.Tasks {
		tasks[i] = TaskFromDomain(t)
	}
	return JobStatusResponse{Job: JobFromDomain(v.Job), Tasks: tasks}
}

// ResumeStatus — статус в ответе на resume: продвижение job запланировано.
const ResumeStatus = "resuming"

// ResumeResponse — ответ на resume.
type ResumeResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// ConsumeResponse — результат отметки consumed.
// Consumed == true только для вызова, который выставил флаг.
type ConsumeResponse struct {
	JobID    uuid.UUID `json:"job_id"`
	Consumed bool      `json:"consumed"`
}
