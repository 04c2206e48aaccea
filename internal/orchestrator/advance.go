package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/engine"
	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/repo"
	"github.com/shaiso/Reel/internal/tasks"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// Advance синхронно продвигает job, пока шаги выполняются успешно.
//
// Возвращает nil, когда job дошёл до финального статуса (в том числе
// failed: ошибка шага записывается в job, а не возвращается).
// ErrJobAlreadyActive, если job уже продвигается в этом процессе.
func (o *Orchestrator) Advance(ctx context.Context, jobID uuid.UUID) error {
	if !o.active.tryAcquire(jobID) {
		return ErrJobAlreadyActive
	}
	defer o.active.forget(jobID)

	return o.advance(ctx, jobID)
}

// advance — цикл продвижения job:
//
//  1. Загрузить job; если он в финальном статусе — выйти
//  2. Найти первый pending task; если его нет — завершить job
//  3. Собрать входные данные шага из input job и результатов completed tasks
//  4. Захватить task (pending → processing) и выполнить handler
//  5. Сохранить результат, только если task всё ещё processing
func (o *Orchestrator) advance(ctx context.Context, jobID uuid.UUID) error {
	if o.locker != nil {
		release, err := o.locker.LockJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrJobAlreadyActive, err)
		}
		defer release()
	}

	logger := telemetry.WithJobID(o.logger, jobID.String())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := o.getJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.IsFinished() {
			return nil
		}

		def, err := o.workflows.Get(job.WorkflowType)
		if err != nil {
			return o.failJob(ctx, job, err.Error(), logger)
		}

		taskList, err := o.tasks.ListByJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}

		n, busy, err := o.recoverOrphans(ctx, taskList, logger)
		if err != nil {
			return err
		}
		if busy {
			logger.Debug("step is running in another process")
			return nil
		}
		if n > 0 {
			continue
		}

		next := firstPending(taskList)
		if next == nil {
			if failed := firstFailed(taskList); failed != nil {
				// Процесс упал между записью task и записью job
				return o.failJob(ctx, job, failed.Error, logger)
			}
			return o.completeJob(ctx, job, logger)
		}

		taskLogger := telemetry.WithTaskID(logger, next.ID.String(), next.StepIndex)

		step, ok := def.StepAt(next.StepIndex)
		if !ok || len(def.Steps) != len(taskList) || step.Type != next.StepType {
			msg := fmt.Sprintf("%s: workflow %s has %d steps, job has %d tasks (step %d)",
				ErrStepDefinitionMissing, def.Name, len(def.Steps), len(taskList), next.StepIndex)
			next.MarkFailed(msg)
			if _, err := o.tasks.Transition(ctx, next, domain.TaskStatusPending); err != nil {
				return fmt.Errorf("fail task: %w", err)
			}
			return o.failJob(ctx, job, msg, taskLogger)
		}

		job.MarkRunning(next.StepIndex)
		ok, err = o.jobs.UpdateIfStatus(ctx, job, domain.JobStatusPending, domain.JobStatusRunning)
		if err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}
		if !ok {
			// Job отменили, пока мы собирались
			continue
		}

		input, err := buildInput(step.Build, buildContext(job, taskList))
		if err != nil {
			msg := fmt.Sprintf("%s: step %d (%s): %v", ErrInputBuildFailed, next.StepIndex, next.StepType, err)
			taskLogger.Warn("input build failed", "error", err)
			next.MarkFailed(msg)
			if _, err := o.tasks.Transition(ctx, next, domain.TaskStatusPending); err != nil {
				return fmt.Errorf("fail task: %w", err)
			}
			return o.failJob(ctx, job, msg, taskLogger)
		}

		next.MarkProcessing(input)
		claimed, err := o.tasks.Transition(ctx, next, domain.TaskStatusPending)
		if err != nil {
			return fmt.Errorf("claim task: %w", err)
		}
		if !claimed {
			taskLogger.Debug("task changed before claim, reloading")
			continue
		}

		taskLogger.Info("step started", "step_type", next.StepType)

		result, runErr := o.runStep(ctx, job, next, step, taskLogger)

		// Остановка процесса: task остаётся processing до восстановления
		if runErr != nil && ctx.Err() != nil {
			taskLogger.Info("step interrupted by shutdown")
			return ctx.Err()
		}

		if runErr != nil {
			msg := runErr.Error()
			next.MarkFailed(msg)
			fenced, err := o.tasks.Transition(ctx, next, domain.TaskStatusProcessing)
			if err != nil {
				return fmt.Errorf("save task failure: %w", err)
			}
			if !fenced {
				taskLogger.Info("task changed while running, failure discarded")
				return nil
			}
			taskLogger.Warn("step failed", "error", runErr, "duration", next.Duration())
			return o.failJob(ctx, job, msg, taskLogger)
		}

		next.MarkCompleted(result)
		fenced, err := o.tasks.Transition(ctx, next, domain.TaskStatusProcessing)
		if err != nil {
			return fmt.Errorf("save task result: %w", err)
		}
		if !fenced {
			taskLogger.Info("task changed while running, result discarded")
			return nil
		}

		taskLogger.Info("step completed", "duration", next.Duration())
	}
}

// runStep выполняет handler шага. Паника handler'а становится ошибкой шага.
func (o *Orchestrator) runStep(ctx context.Context, job *domain.Job, task *domain.Task, step *workflow.Step, logger *slog.Logger) (result map[string]any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Type, r)
		}
		status := domain.TaskStatusCompleted
		if err != nil {
			status = domain.TaskStatusFailed
		}
		o.metrics.TaskDone(step.Type, string(status), time.Since(start))
	}()

	return step.Handler.Execute(ctx, &tasks.Request{
		JobID:     job.ID,
		StepIndex: task.StepIndex,
		Input:     task.InputParams,
		Progress:  o.progressReporter(ctx, task, logger),
	})
}

// progressReporter сохраняет прогресс task. Прогресс только растёт,
// одинаковые значения не пишутся. task.Progress следует за сохранённым
// значением, чтобы итоговый Transition его не затёр.
func (o *Orchestrator) progressReporter(ctx context.Context, task *domain.Task, logger *slog.Logger) func(int) {
	var mu sync.Mutex
	taskID := task.ID
	return func(percent int) {
		percent = min(max(percent, 0), 100)

		mu.Lock()
		if percent <= task.Progress {
			mu.Unlock()
			return
		}
		task.Progress = percent
		mu.Unlock()

		if err := o.tasks.UpdateProgress(ctx, taskID, percent); err != nil && ctx.Err() == nil {
			logger.Warn("failed to save progress", "progress", percent, "error", err)
		}
	}
}

// recoverOrphans возвращает брошенные processing tasks в pending.
//
// С локом processing task может принадлежать только упавшему процессу.
// Без лока task считается брошенным, когда updated_at не менялся дольше
// orphanTimeout (Transition и UpdateProgress его обновляют). Свежий
// processing task означает, что шаг выполняется другим процессом: тогда
// busy = true и job трогать нельзя.
func (o *Orchestrator) recoverOrphans(ctx context.Context, taskList []domain.Task, logger *slog.Logger) (n int, busy bool, err error) {
	for i := range taskList {
		t := &taskList[i]
		if t.Status != domain.TaskStatusProcessing {
			continue
		}
		if o.locker == nil && time.Since(t.UpdatedAt) < o.orphanTimeout {
			busy = true
			continue
		}
		t.ResetForResume()
		ok, err := o.tasks.Transition(ctx, t, domain.TaskStatusProcessing)
		if err != nil {
			return n, busy, fmt.Errorf("reset orphaned task: %w", err)
		}
		if ok {
			n++
			logger.Warn("reset orphaned task", "task_id", t.ID, "step_index", t.StepIndex)
		}
	}
	return n, busy, nil
}

// completeJob переводит job в completed.
func (o *Orchestrator) completeJob(ctx context.Context, job *domain.Job, logger *slog.Logger) error {
	job.MarkCompleted()
	return o.finishJob(ctx, job, logger)
}

// failJob переводит job в failed с сообщением.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.Job, msg string, logger *slog.Logger) error {
	job.MarkFailed(msg)
	return o.finishJob(ctx, job, logger)
}

func (o *Orchestrator) finishJob(ctx context.Context, job *domain.Job, logger *slog.Logger) error {
	ok, err := o.jobs.UpdateIfStatus(ctx, job, domain.JobStatusPending, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if !ok {
		logger.Info("job changed concurrently, final status discarded", "status", job.Status)
		return nil
	}

	o.metrics.JobFinished(job.WorkflowType, string(job.Status))
	logger.Info("job finished", "status", job.Status, "error", job.Error, "duration", job.Duration())

	if o.events != nil {
		if err := o.events.PublishJobFinished(ctx, job); err != nil {
			logger.Warn("failed to publish job.finished", "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) getJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// buildContext собирает контекст шага из job и результатов completed tasks.
func buildContext(job *domain.Job, taskList []domain.Task) *engine.Context {
	ectx := engine.NewContext(job.ID, job.UserID, job.ProjectID, job.InputParams)
	for i := range taskList {
		if taskList[i].Status == domain.TaskStatusCompleted {
			ectx.AddStepResult(taskList[i].StepIndex, taskList[i].ResultData)
		}
	}
	return ectx
}

// buildInput вызывает сборщик входных данных. Паника сборщика становится ошибкой.
func buildInput(build fields.BuildInput, ectx *engine.Context) (input map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return build(ectx)
}

func firstPending(taskList []domain.Task) *domain.Task {
	for i := range taskList {
		if taskList[i].Status == domain.TaskStatusPending {
			return &taskList[i]
		}
	}
	return nil
}

func firstFailed(taskList []domain.Task) *domain.Task {
	for i := range taskList {
		if taskList[i].Status == domain.TaskStatusFailed {
			return &taskList[i]
		}
	}
	return nil
}
