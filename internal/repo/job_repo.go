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

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `
	id, user_id, project_id, workflow_type, status, current_step_index, total_steps,
	input_params, error, consumed, created_at, started_at, completed_at, updated_at`

// CreateWithTasks атомарно создаёт job и все его tasks.
func (r *JobRepo) CreateWithTasks(ctx context.Context, job *domain.Job, tasks []domain.Task) error {
	inputJSON, err := marshalMap(job.InputParams)
	if err != nil {
		return fmt.Errorf("marshal input params: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, user_id, project_id, workflow_type, status, current_step_index,
		                  total_steps, input_params, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		job.ID,
		job.UserID,
		nullString(job.ProjectID),
		job.WorkflowType,
		job.Status,
		job.CurrentStepIndex,
		job.TotalSteps,
		inputJSON,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range tasks {
		t := &tasks[i]
		batch.Queue(`
			INSERT INTO tasks (id, job_id, step_index, step_type, target_type, status, progress, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, t.ID, t.JobID, t.StepIndex, t.StepType, nullString(t.TargetType), t.Status, t.Progress, t.CreatedAt, t.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// UpdateIfStatus сохраняет изменяемые поля job, только если текущий
// статус входит в from.
func (r *JobRepo) UpdateIfStatus(ctx context.Context, job *domain.Job, from ...domain.JobStatus) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $2, current_step_index = $3, error = $4,
		    started_at = $5, completed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = ANY($7)
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		job.ID,
		job.Status,
		job.CurrentStepIndex,
		nullString(job.Error),
		job.StartedAt,
		job.CompletedAt,
		JobStatusStrings(from),
	).Scan(&job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}
	return true, nil
}

// ListActive возвращает pending/running jobs, самые старые первыми.
func (r *JobRepo) ListActive(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('pending', 'running')
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return collectJobs(rows)
}

// List возвращает jobs с фильтрацией, новые первыми.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	filter = filter.WithDefaults()
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::text IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR workflow_type = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.UserID),
		nullString(filter.WorkflowType),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// MarkConsumed выставляет consumed у completed job.
// Возвращает true, если флаг выставил именно этот вызов.
func (r *JobRepo) MarkConsumed(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs SET consumed = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND NOT consumed
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark consumed: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// --- Helpers ---

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// scanJob сканирует одну строку в Job. pgx.ErrNoRows возвращается как есть.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var inputJSON []byte
	var projectID, jobError *string

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&projectID,
		&job.WorkflowType,
		&job.Status,
		&job.CurrentStepIndex,
		&job.TotalSteps,
		&inputJSON,
		&jobError,
		&job.Consumed,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if job.InputParams, err = unmarshalMap(inputJSON, "input_params"); err != nil {
		return nil, err
	}
	job.ProjectID = derefString(projectID)
	job.Error = derefString(jobError)

	return &job, nil
}
