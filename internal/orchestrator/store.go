package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/repo"
)

// JobStore — хранилище jobs.
//
// Реализации: repo.JobRepo (PostgreSQL), sqlite.Store.
type JobStore interface {
	// CreateWithTasks атомарно создаёт job и все его tasks.
	CreateWithTasks(ctx context.Context, job *domain.Job, tasks []domain.Task) error

	// GetByID возвращает job. repo.ErrNotFound, если нет.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateIfStatus сохраняет job, только если его текущий статус в from.
	// Возвращает false, если статус уже другой.
	UpdateIfStatus(ctx context.Context, job *domain.Job, from ...domain.JobStatus) (bool, error)

	// ListActive возвращает pending/running jobs, самые старые первыми.
	ListActive(ctx context.Context, limit int) ([]domain.Job, error)

	// List возвращает jobs по фильтру, новые первыми.
	List(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error)

	// MarkConsumed выставляет consumed у completed job.
	// Возвращает true, если флаг выставил именно этот вызов.
	MarkConsumed(ctx context.Context, id uuid.UUID) (bool, error)
}

// TaskStore — хранилище tasks.
type TaskStore interface {
	// ListByJob возвращает tasks job по возрастанию step_index.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)

	// Transition сохраняет task, только если его текущий статус равен from.
	// На этом держатся "claim" (pending → processing) и "fence"
	// (processing → completed/failed) при гонках с cancel и resume.
	Transition(ctx context.Context, task *domain.Task, from domain.TaskStatus) (bool, error)

	// UpdateProgress поднимает прогресс processing-task. Уменьшение игнорируется.
	UpdateProgress(ctx context.Context, taskID uuid.UUID, progress int) error

	// FailOpen переводит pending/processing tasks job в failed с сообщением.
	FailOpen(ctx context.Context, jobID uuid.UUID, message string) (int, error)

	// ResetFailed переводит failed tasks job обратно в pending.
	ResetFailed(ctx context.Context, jobID uuid.UUID) (int, error)
}

// Dispatcher запускает продвижение job.
//
// Реализации: mq.Publisher (сообщение job.trigger для reel-engine).
// Без Dispatcher оркестратор запускает job горутиной в своём процессе.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// EventPublisher сообщает внешним потребителям о завершении job.
// Реализация: mq.Publisher.
type EventPublisher interface {
	PublishJobFinished(ctx context.Context, job *domain.Job) error
}

// Locker — межпроцессный лок на job. Реализация: lock.Redis.
//
// LockJob возвращает функцию освобождения или ошибку, если лок
// держит кто-то другой.
type Locker interface {
	LockJob(ctx context.Context, jobID uuid.UUID) (release func(), err error)
}
