package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/orchestrator"
	"github.com/shaiso/Reel/internal/repo"
)

// StartJob запускает пайплайн.
// POST /api/v1/workflows/{type}/jobs
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	view, err := h.jobs.StartJob(r.Context(), orchestrator.StartRequest{
		WorkflowType: r.PathValue("type"),
		UserID:       userID(r),
		ProjectID:    req.ProjectID,
		Input:        req.Input,
	})
	if HandleError(w, h.logger, err) {
		return
	}

	tasks := make([]TaskSummary, len(view.Tasks))
	for i, t := range view.Tasks {
		tasks[i] = TaskSummary{
			ID:        t.ID,
			StepIndex: t.StepIndex,
			StepType:  t.StepType,
			Status:    string(t.Status),
		}
	}

	Accepted(w, StartJobResponse{
		JobID: view.Job.ID,
		Tasks: tasks,
		Job:   JobFromDomain(view.Job),
	})
}

// ListJobs возвращает jobs пользователя.
// GET /api/v1/jobs?workflow=...&status=...&limit=...&offset=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.JobFilter{
		UserID:       userID(r),
		WorkflowType: q.Get("workflow"),
	}

	if status := q.Get("status"); status != "" {
		s := domain.JobStatus(status)
		if !s.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = s
	}

	var ok bool
	if filter.Limit, ok = intParam(q.Get("limit"), 0); !ok {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, ok = intParam(q.Get("offset"), 0); !ok {
		BadRequest(w, "invalid offset")
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), filter)
	if HandleError(w, h.logger, err) {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i := range jobs {
		result[i] = JobFromDomain(&jobs[i])
	}

	List(w, result, len(result))
}

// GetJob возвращает статус job вместе с tasks.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	view, err := h.jobs.GetStatus(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	if view.Job.UserID != userID(r) {
		HandleError(w, h.logger, orchestrator.ErrNotOwner)
		return
	}

	Success(w, JobStatusFromView(view))
}

// ResumeJob продолжает job с первого незавершённого шага.
// POST /api/v1/jobs/{id}/resume
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.ResumeJob(r.Context(), id, userID(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Accepted(w, ResumeResponse{JobID: job.ID, Status: ResumeStatus})
}

// CancelJob отменяет job.
// POST /api/v1/jobs/{id}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.CancelJob(r.Context(), id, userID(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, JobFromDomain(job))
}

// ConsumeJob отмечает результат completed job как обработанный.
// POST /api/v1/jobs/{id}/consume
func (h *Handler) ConsumeJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	consumed, err := h.jobs.MarkConsumed(r.Context(), id, userID(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, ConsumeResponse{JobID: id, Consumed: consumed})
}

// jobID разбирает {id} из пути. При ошибке отвечает 400.
func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

// intParam разбирает неотрицательное целое из query. Пустая строка — def.
func intParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
