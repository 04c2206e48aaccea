package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/repo"
)

const jobColumns = `id, user_id, project_id, workflow_type, status, current_step_index, total_steps,
	input_params, error, consumed, created_at, started_at, completed_at, updated_at`

// CreateWithTasks атомарно создаёт job и все его tasks.
func (s *Store) CreateWithTasks(ctx context.Context, job *domain.Job, tasks []domain.Task) error {
	input, err := encodeMap(job.InputParams)
	if err != nil {
		return fmt.Errorf("marshal input params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, project_id, workflow_type, status, current_step_index,
		                   total_steps, input_params, consumed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		job.ID.String(),
		job.UserID,
		nullableString(job.ProjectID),
		job.WorkflowType,
		string(job.Status),
		job.CurrentStepIndex,
		job.TotalSteps,
		input,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (id, job_id, step_index, step_type, target_type, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare task insert: %w", err)
	}
	defer stmt.Close()

	for i := range tasks {
		t := &tasks[i]
		if _, err := stmt.ExecContext(ctx,
			t.ID.String(), t.JobID.String(), t.StepIndex, t.StepType, nullableString(t.TargetType),
			string(t.Status), t.Progress, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert task %d: %w", t.StepIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateIfStatus сохраняет изменяемые поля job, только если текущий
// статус входит в from.
func (s *Store) UpdateIfStatus(ctx context.Context, job *domain.Job, from ...domain.JobStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	now := time.Now().UTC()
	args := []any{
		string(job.Status),
		job.CurrentStepIndex,
		nullableString(job.Error),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		formatTime(now),
		job.ID.String(),
	}
	for _, st := range from {
		args = append(args, string(st))
	}

	n, err := s.execAffected(ctx,
		`UPDATE jobs
		 SET status = ?, current_step_index = ?, error = ?, started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	job.UpdatedAt = now
	return true, nil
}

// ListActive возвращает pending/running jobs, самые старые первыми.
func (s *Store) ListActive(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ('pending', 'running')
		 ORDER BY created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return collectJobs(rows)
}

// List возвращает jobs с фильтрацией, новые первыми.
func (s *Store) List(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	filter = filter.WithDefaults()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE (? = '' OR user_id = ?)
		   AND (? = '' OR workflow_type = ?)
		   AND (? = '' OR status = ?)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		filter.UserID, filter.UserID,
		filter.WorkflowType, filter.WorkflowType,
		string(filter.Status), string(filter.Status),
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// MarkConsumed выставляет consumed у completed job.
func (s *Store) MarkConsumed(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.execAffected(ctx,
		`UPDATE jobs SET consumed = 1, updated_at = ?
		 WHERE id = ? AND status = 'completed' AND consumed = 0`,
		formatTime(time.Now()), id.String())
	if err != nil {
		return false, fmt.Errorf("mark consumed: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, id.String()).Scan(&count); err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	if count == 0 {
		return false, repo.ErrNotFound
	}
	return false, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*domain.Job, error) {
	var (
		job                      domain.Job
		idRaw, statusRaw         string
		projectID, jobError      sql.NullString
		input                    sql.NullString
		consumed                 int
		createdRaw, updatedRaw   string
		startedRaw, completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&idRaw,
		&job.UserID,
		&projectID,
		&job.WorkflowType,
		&statusRaw,
		&job.CurrentStepIndex,
		&job.TotalSteps,
		&input,
		&jobError,
		&consumed,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	var err error
	if job.ID, err = uuid.Parse(idRaw); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	job.Status = domain.JobStatus(statusRaw)
	job.ProjectID = projectID.String
	job.Error = jobError.String
	job.Consumed = consumed != 0

	if job.InputParams, err = decodeMap(input, "input_params"); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if job.StartedAt, err = parseNullableTime(startedRaw); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if job.CompletedAt, err = parseNullableTime(completedRaw); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &job, nil
}
