package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Reel/internal/domain"
)

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `
	id, job_id, step_index, step_type, target_type, status, progress,
	input_params, result_data, error, created_at, started_at, completed_at, updated_at`

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// ListByJob возвращает все tasks job по возрастанию step_index.
func (r *TaskRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE job_id = $1
		ORDER BY step_index ASC
	`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by job_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Transition сохраняет изменяемые поля task, только если текущий статус равен from.
func (r *TaskRepo) Transition(ctx context.Context, task *domain.Task, from domain.TaskStatus) (bool, error) {
	inputJSON, err := marshalMap(task.InputParams)
	if err != nil {
		return false, fmt.Errorf("marshal input params: %w", err)
	}
	resultJSON, err := marshalMap(task.ResultData)
	if err != nil {
		return false, fmt.Errorf("marshal result data: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $3, progress = $4, input_params = $5, result_data = $6,
		    error = $7, started_at = $8, completed_at = $9, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		task.ID,
		from,
		task.Status,
		task.Progress,
		inputJSON,
		resultJSON,
		nullString(task.Error),
		task.StartedAt,
		task.CompletedAt,
	).Scan(&task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return true, nil
}

// UpdateProgress поднимает прогресс processing-task.
func (r *TaskRepo) UpdateProgress(ctx context.Context, taskID uuid.UUID, progress int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET progress = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND progress < $2
	`, taskID, progress)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// FailOpen переводит pending/processing tasks job в failed с сообщением.
func (r *TaskRepo) FailOpen(ctx context.Context, jobID uuid.UUID, message string) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'failed', error = $2, result_data = NULL,
		    completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $1 AND status IN ('pending', 'processing')
	`, jobID, message)
	if err != nil {
		return 0, fmt.Errorf("fail open tasks: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ResetFailed переводит failed tasks job обратно в pending.
func (r *TaskRepo) ResetFailed(ctx context.Context, jobID uuid.UUID) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending', progress = 0, error = NULL, result_data = NULL,
		    started_at = NULL, completed_at = NULL, updated_at = NOW()
		WHERE job_id = $1 AND status = 'failed'
	`, jobID)
	if err != nil {
		return 0, fmt.Errorf("reset failed tasks: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var inputJSON, resultJSON []byte
	var targetType, taskError *string

	err := row.Scan(
		&task.ID,
		&task.JobID,
		&task.StepIndex,
		&task.StepType,
		&targetType,
		&task.Status,
		&task.Progress,
		&inputJSON,
		&resultJSON,
		&taskError,
		&task.CreatedAt,
		&task.StartedAt,
		&task.CompletedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if task.InputParams, err = unmarshalMap(inputJSON, "input_params"); err != nil {
		return nil, err
	}
	if task.ResultData, err = unmarshalMap(resultJSON, "result_data"); err != nil {
		return nil, err
	}
	task.TargetType = derefString(targetType)
	task.Error = derefString(taskError)

	return &task, nil
}
