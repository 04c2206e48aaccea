package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
)

const taskColumns = `id, job_id, step_index, step_type, target_type, status, progress,
	input_params, result_data, error, created_at, started_at, completed_at, updated_at`

// ListByJob возвращает tasks job по возрастанию step_index.
func (s *Store) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE job_id = ? ORDER BY step_index ASC`, jobID.String())
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
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

// Transition сохраняет task, только если его текущий статус равен from.
func (s *Store) Transition(ctx context.Context, task *domain.Task, from domain.TaskStatus) (bool, error) {
	input, err := encodeMap(task.InputParams)
	if err != nil {
		return false, fmt.Errorf("marshal input params: %w", err)
	}
	result, err := encodeMap(task.ResultData)
	if err != nil {
		return false, fmt.Errorf("marshal result data: %w", err)
	}

	now := time.Now().UTC()
	n, err := s.execAffected(ctx,
		`UPDATE tasks
		 SET status = ?, progress = ?, input_params = ?, result_data = ?, error = ?,
		     started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(task.Status),
		task.Progress,
		input,
		result,
		nullableString(task.Error),
		nullableTime(task.StartedAt),
		nullableTime(task.CompletedAt),
		formatTime(now),
		task.ID.String(),
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	task.UpdatedAt = now
	return true, nil
}

// UpdateProgress поднимает прогресс processing-task.
func (s *Store) UpdateProgress(ctx context.Context, taskID uuid.UUID, progress int) error {
	_, err := s.exec(ctx,
		`UPDATE tasks SET progress = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing' AND progress < ?`,
		progress, formatTime(time.Now()), taskID.String(), progress)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// FailOpen переводит pending/processing tasks job в failed с сообщением.
func (s *Store) FailOpen(ctx context.Context, jobID uuid.UUID, message string) (int, error) {
	now := formatTime(time.Now())
	n, err := s.execAffected(ctx,
		`UPDATE tasks
		 SET status = 'failed', error = ?, result_data = NULL, completed_at = ?, updated_at = ?
		 WHERE job_id = ? AND status IN ('pending', 'processing')`,
		message, now, now, jobID.String())
	if err != nil {
		return 0, fmt.Errorf("fail open tasks: %w", err)
	}
	return int(n), nil
}

// ResetFailed переводит failed tasks job обратно в pending.
func (s *Store) ResetFailed(ctx context.Context, jobID uuid.UUID) (int, error) {
	n, err := s.execAffected(ctx,
		`UPDATE tasks
		 SET status = 'pending', progress = 0, error = NULL, result_data = NULL,
		     started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE job_id = ? AND status = 'failed'`,
		formatTime(time.Now()), jobID.String())
	if err != nil {
		return 0, fmt.Errorf("reset failed tasks: %w", err)
	}
	return int(n), nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*domain.Task, error) {
	var (
		task                     domain.Task
		idRaw, jobIDRaw          string
		statusRaw                string
		targetType, taskError    sql.NullString
		input, result            sql.NullString
		createdRaw, updatedRaw   string
		startedRaw, completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&idRaw,
		&jobIDRaw,
		&task.StepIndex,
		&task.StepType,
		&targetType,
		&statusRaw,
		&task.Progress,
		&input,
		&result,
		&taskError,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&updatedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	var err error
	if task.ID, err = uuid.Parse(idRaw); err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	if task.JobID, err = uuid.Parse(jobIDRaw); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	task.Status = domain.TaskStatus(statusRaw)
	task.TargetType = targetType.String
	task.Error = taskError.String

	if task.InputParams, err = decodeMap(input, "input_params"); err != nil {
		return nil, err
	}
	if task.ResultData, err = decodeMap(result, "result_data"); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if task.StartedAt, err = parseNullableTime(startedRaw); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if task.CompletedAt, err = parseNullableTime(completedRaw); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &task, nil
}
