package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/repo"
)

// StartRequest — параметры запуска пайплайна.
type StartRequest struct {
	WorkflowType string
	UserID       string
	ProjectID    string
	Input        map[string]any
}

// JobView — job вместе с его tasks по возрастанию step_index.
type JobView struct {
	Job   *domain.Job   `json:"job"`
	Tasks []domain.Task `json:"tasks"`
}

// ErrOwnerRequired — у job должен быть владелец.
var ErrOwnerRequired = errors.New("user id is required")

// StartJob создаёт job и все его tasks, затем запускает продвижение.
//
// Возвращается сразу после записи: шаги выполняются асинхронно.
func (o *Orchestrator) StartJob(ctx context.Context, req StartRequest) (*JobView, error) {
	if req.UserID == "" {
		return nil, ErrOwnerRequired
	}

	def, err := o.workflows.Get(req.WorkflowType)
	if err != nil {
		return nil, err
	}

	input := req.Input
	if input == nil {
		input = make(map[string]any)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:           uuid.New(),
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		WorkflowType: def.Name,
		Status:       domain.JobStatusPending,
		TotalSteps:   len(def.Steps),
		InputParams:  input,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	taskList := make([]domain.Task, len(def.Steps))
	for i, step := range def.Steps {
		taskList[i] = domain.NewTask(job.ID, step.Index, step.Type, step.TargetType)
	}

	if err := o.jobs.CreateWithTasks(ctx, job, taskList); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	o.metrics.JobStarted(job.WorkflowType)
	o.logger.Info("job created",
		"job_id", job.ID,
		"workflow", job.WorkflowType,
		"user_id", job.UserID,
		"steps", job.TotalSteps,
	)

	o.dispatch(ctx, job.ID)

	return &JobView{Job: job, Tasks: taskList}, nil
}

// ResumeJob продолжает job с первого незавершённого шага.
//
// Failed tasks возвращаются в pending, completed не трогаются.
// Для pending/running job повторно запускает продвижение (восстановление
// после потерянного сообщения). Пустой ownerID отключает проверку владельца.
func (o *Orchestrator) ResumeJob(ctx context.Context, jobID uuid.UUID, ownerID string) (*domain.Job, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && job.UserID != ownerID {
		return nil, ErrNotOwner
	}

	switch job.Status {
	case domain.JobStatusCompleted, domain.JobStatusCancelled:
		return nil, fmt.Errorf("%w: status %s", ErrJobNotResumable, job.Status)

	case domain.JobStatusFailed:
		n, err := o.tasks.ResetFailed(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("reset failed tasks: %w", err)
		}

		job.ResetForResume()
		ok, err := o.jobs.UpdateIfStatus(ctx, job, domain.JobStatusFailed)
		if err != nil {
			return nil, fmt.Errorf("resume job: %w", err)
		}
		if !ok {
			return o.resumeRaced(ctx, jobID, ownerID)
		}

		o.logger.Info("job resumed", "job_id", jobID, "reset_tasks", n)
	}

	o.dispatch(ctx, jobID)
	return job, nil
}

// resumeRaced разбирает проигранную гонку resume. Cancel мог закрыть tasks
// до того, как ResetFailed вернул их в pending: тогда они закрываются повторно.
func (o *Orchestrator) resumeRaced(ctx context.Context, jobID uuid.UUID, ownerID string) (*domain.Job, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusCancelled {
		if _, err := o.tasks.FailOpen(ctx, jobID, domain.CancelledMessage); err != nil {
			return nil, fmt.Errorf("close tasks: %w", err)
		}
		return nil, fmt.Errorf("%w: status %s", ErrJobNotResumable, job.Status)
	}
	// Параллельный resume: отдаём актуальное состояние
	return o.ResumeJob(ctx, jobID, ownerID)
}

// CancelJob отменяет job.
//
// Открытые (pending, processing) tasks переходят в failed с
// domain.CancelledMessage. Работающий handler не прерывается: его
// результат будет отброшен при сохранении. Completed job отменить нельзя,
// повторная отмена ничего не меняет.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID uuid.UUID, ownerID string) (*domain.Job, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != ownerID {
		return nil, ErrNotOwner
	}

	for {
		switch job.Status {
		case domain.JobStatusCompleted:
			return nil, ErrJobCompleted
		case domain.JobStatusCancelled:
			return job, nil
		}

		job.MarkCancelled()
		ok, err := o.jobs.UpdateIfStatus(ctx, job,
			domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusFailed)
		if err != nil {
			return nil, fmt.Errorf("cancel job: %w", err)
		}
		if ok {
			break
		}

		// Статус поменялся между чтением и записью
		if job, err = o.getJob(ctx, jobID); err != nil {
			return nil, err
		}
	}

	n, err := o.tasks.FailOpen(ctx, jobID, domain.CancelledMessage)
	if err != nil {
		return nil, fmt.Errorf("fail open tasks: %w", err)
	}

	o.metrics.JobFinished(job.WorkflowType, string(job.Status))
	o.logger.Info("job cancelled", "job_id", jobID, "closed_tasks", n)

	return job, nil
}

// GetStatus возвращает job и его tasks.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID uuid.UUID) (*JobView, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	taskList, err := o.tasks.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return &JobView{Job: job, Tasks: taskList}, nil
}

// ListJobs возвращает jobs по фильтру.
func (o *Orchestrator) ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	jobs, err := o.jobs.List(ctx, filter.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// MarkConsumed отмечает, что результат completed job обработан потребителем.
// Возвращает false, если флаг уже стоял.
func (o *Orchestrator) MarkConsumed(ctx context.Context, jobID uuid.UUID, ownerID string) (bool, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if ownerID != "" && job.UserID != ownerID {
		return false, ErrNotOwner
	}
	if job.Status != domain.JobStatusCompleted {
		return false, fmt.Errorf("%w: status %s", ErrJobNotCompleted, job.Status)
	}

	return o.jobs.MarkConsumed(ctx, jobID)
}
