package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/orchestrator"
	"github.com/shaiso/Reel/internal/repo"
	"github.com/shaiso/Reel/internal/repo/sqlite"
	"github.com/shaiso/Reel/internal/tasks"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// fakeJobs — JobService с заранее заданными ответами.
type fakeJobs struct {
	view     *orchestrator.JobView
	err      error
	filter   repo.JobFilter
	ownerArg string
	consumed bool
}

func (f *fakeJobs) StartJob(_ context.Context, req orchestrator.StartRequest) (*orchestrator.JobView, error) {
	if f.err != nil {
		return nil, f.err
	}
	job := &domain.Job{
		ID:           uuid.New(),
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		WorkflowType: req.WorkflowType,
		Status:       domain.JobStatusPending,
		TotalSteps:   1,
		InputParams:  req.Input,
		CreatedAt:    time.Now(),
	}
	return &orchestrator.JobView{
		Job:   job,
		Tasks: []domain.Task{domain.NewTask(job.ID, 0, "echo", "script")},
	}, nil
}

func (f *fakeJobs) GetStatus(context.Context, uuid.UUID) (*orchestrator.JobView, error) {
	return f.view, f.err
}

func (f *fakeJobs) ResumeJob(_ context.Context, _ uuid.UUID, ownerID string) (*domain.Job, error) {
	f.ownerArg = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return f.view.Job, nil
}

func (f *fakeJobs) CancelJob(_ context.Context, _ uuid.UUID, ownerID string) (*domain.Job, error) {
	f.ownerArg = ownerID
	if f.err != nil {
		return nil, f.err
	}
	job := *f.view.Job
	job.Status = domain.JobStatusCancelled
	return &job, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	f.filter = filter
	return []domain.Job{*f.view.Job}, f.err
}

func (f *fakeJobs) MarkConsumed(_ context.Context, _ uuid.UUID, ownerID string) (bool, error) {
	f.ownerArg = ownerID
	return f.consumed, f.err
}

type echoHandler struct{}

func (echoHandler) Type() string { return "echo" }

func (echoHandler) Execute(_ context.Context, req *tasks.Request) (map[string]any, error) {
	return req.Input, nil
}

func testCatalog(t *testing.T) *workflow.Catalog {
	t.Helper()
	registry := tasks.NewRegistry()
	registry.Register(echoHandler{})

	catalog, err := workflow.NewCatalog(
		fields.MustRegistry(fields.Field{Name: "prompt"}),
		registry,
		workflow.Spec{
			Name:        "echo",
			Description: "returns its input",
			Steps: []workflow.StepSpec{
				{Type: "echo", TargetType: "script", Fields: []fields.Ref{fields.F("prompt")}},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return catalog
}

func sampleView(owner string) *orchestrator.JobView {
	job := &domain.Job{
		ID:           uuid.New(),
		UserID:       owner,
		WorkflowType: "echo",
		Status:       domain.JobStatusCompleted,
		TotalSteps:   1,
	}
	task := domain.NewTask(job.ID, 0, "echo", "script")
	task.Status = domain.TaskStatusCompleted
	task.Progress = 100
	task.ResultData = map[string]any{"prompt": "hi"}
	return &orchestrator.JobView{Job: job, Tasks: []domain.Task{task}}
}

func newServer(t *testing.T, jobs JobService, providers ProviderStore) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{
		Jobs:      jobs,
		Workflows: testCatalog(t),
		Providers: providers,
		Logger:    telemetry.Discard(),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, user string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, out
}

func errorCode(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestListWorkflows(t *testing.T) {
	srv := newServer(t, &fakeJobs{}, nil)

	resp, out := do(t, http.MethodGet, srv.URL+"/api/v1/workflows", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	data := out["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(data))
	}
	wf := data[0].(map[string]any)
	if wf["name"] != "echo" || len(wf["steps"].([]any)) != 1 {
		t.Errorf("unexpected workflow: %v", wf)
	}
}

func TestStartJob(t *testing.T) {
	srv := newServer(t, &fakeJobs{}, nil)

	resp, out := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/echo/jobs", "u1",
		StartJobRequest{ProjectID: "p1", Input: map[string]any{"prompt": "hi"}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
	}

	data := out["data"].(map[string]any)
	if data["job_id"] == "" {
		t.Error("job_id is empty")
	}
	taskList := data["tasks"].([]any)
	if len(taskList) != 1 || taskList[0].(map[string]any)["status"] != "pending" {
		t.Errorf("unexpected tasks: %v", taskList)
	}
	job := data["job"].(map[string]any)
	if job["user_id"] != "u1" || job["workflow_type"] != "echo" {
		t.Errorf("unexpected job: %v", job)
	}
}

func TestStartJob_RequiresUser(t *testing.T) {
	srv := newServer(t, &fakeJobs{}, nil)

	resp, out := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/echo/jobs", "", StartJobRequest{})
	if resp.StatusCode != http.StatusUnauthorized || errorCode(out) != string(ErrCodeUnauthorized) {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
	}
}

func TestStartJob_UnknownWorkflow(t *testing.T) {
	srv := newServer(t, &fakeJobs{err: workflow.ErrUnknownWorkflow}, nil)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/nope/jobs", "u1", StartJobRequest{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStartJob_InvalidBody(t *testing.T) {
	srv := newServer(t, &fakeJobs{}, nil)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/workflows/echo/jobs", strings.NewReader("{"))
	req.Header.Set(HeaderUserID, "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetJob(t *testing.T) {
	view := sampleView("u1")
	srv := newServer(t, &fakeJobs{view: view}, nil)

	resp, out := do(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.Job.ID.String(), "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data := out["data"].(map[string]any)
	taskList := data["tasks"].([]any)
	task := taskList[0].(map[string]any)
	if task["progress"].(float64) != 100 || task["result_data"] == nil {
		t.Errorf("unexpected task: %v", task)
	}

	// Чужой job
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.Job.ID.String(), "u2", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign job status = %d, want 403", resp.StatusCode)
	}
}

func TestGetJob_Errors(t *testing.T) {
	srv := newServer(t, &fakeJobs{err: orchestrator.ErrJobNotFound}, nil)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/jobs/not-a-uuid", "u1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+uuid.NewString(), "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", resp.StatusCode)
	}
}

func TestListJobs_ScopedToUser(t *testing.T) {
	jobs := &fakeJobs{view: sampleView("u1")}
	srv := newServer(t, jobs, nil)

	resp, out := do(t, http.MethodGet, srv.URL+"/api/v1/jobs?status=completed&workflow=echo&limit=5", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["total"].(float64) != 1 {
		t.Errorf("total = %v", out["total"])
	}
	if jobs.filter.UserID != "u1" || jobs.filter.Status != domain.JobStatusCompleted ||
		jobs.filter.WorkflowType != "echo" || jobs.filter.Limit != 5 {
		t.Errorf("unexpected filter: %+v", jobs.filter)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/jobs?status=bogus", "u1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/jobs?limit=-1", "u1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}
}

func TestJobActions(t *testing.T) {
	view := sampleView("u1")
	jobs := &fakeJobs{view: view, consumed: true}
	srv := newServer(t, jobs, nil)
	base := srv.URL + "/api/v1/jobs/" + view.Job.ID.String()

	resp, out := do(t, http.MethodPost, base+"/cancel", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	if out["data"].(map[string]any)["status"] != "cancelled" || jobs.ownerArg != "u1" {
		t.Errorf("cancel: %v, owner %q", out, jobs.ownerArg)
	}

	resp, out = do(t, http.MethodPost, base+"/resume", "u1", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("resume status = %d, want 202", resp.StatusCode)
	}
	if data := out["data"].(map[string]any); data["status"] != "resuming" || data["job_id"] != jobs.view.Job.ID.String() {
		t.Errorf("resume: %v", out)
	}

	resp, out = do(t, http.MethodPost, base+"/consume", "u1", nil)
	if resp.StatusCode != http.StatusOK || out["data"].(map[string]any)["consumed"] != true {
		t.Errorf("consume: %d %v", resp.StatusCode, out)
	}
}

func TestJobActions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		path   string
		status int
	}{
		{"cancel completed", orchestrator.ErrJobCompleted, "/cancel", http.StatusUnprocessableEntity},
		{"cancel foreign", orchestrator.ErrNotOwner, "/cancel", http.StatusForbidden},
		{"resume cancelled", orchestrator.ErrJobNotResumable, "/resume", http.StatusUnprocessableEntity},
		{"consume running", orchestrator.ErrJobNotCompleted, "/consume", http.StatusUnprocessableEntity},
		{"store failure", context.DeadlineExceeded, "/resume", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeJobs{view: sampleView("u1"), err: tt.err}, nil)
			resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/jobs/"+uuid.NewString()+tt.path, "u1", nil)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestProviders(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "reel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := newServer(t, &fakeJobs{}, store)
	base := srv.URL + "/api/v1/providers"

	cfg := domain.ProviderConfig{
		Category:        "text",
		URLTemplate:     "https://api.acme.test/v1/chat",
		ResponseMapping: map[string]string{"text": "choices.0.message.content"},
	}
	resp, out := do(t, http.MethodPut, base+"/acme-text", "", cfg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, body = %v", resp.StatusCode, out)
	}

	resp, out = do(t, http.MethodGet, base, "", nil)
	if resp.StatusCode != http.StatusOK || out["total"].(float64) != 1 {
		t.Fatalf("list: %d %v", resp.StatusCode, out)
	}

	resp, out = do(t, http.MethodGet, base+"/acme-text", "", nil)
	if resp.StatusCode != http.StatusOK || out["data"].(map[string]any)["name"] != "acme-text" {
		t.Fatalf("get: %d %v", resp.StatusCode, out)
	}

	// Асинхронный провайдер без условия успеха отклоняется
	bad := cfg
	bad.QueryURLTemplate = "https://api.acme.test/tasks/{{task_id}}"
	resp, _ = do(t, http.MethodPut, base+"/acme-async", "", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid config status = %d, want 400", resp.StatusCode)
	}

	mismatch := cfg
	mismatch.Name = "other"
	resp, _ = do(t, http.MethodPut, base+"/acme-text", "", mismatch)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("name mismatch status = %d, want 400", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodDelete, base+"/acme-text", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, base+"/acme-text", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestProviders_NotConfigured(t *testing.T) {
	srv := newServer(t, &fakeJobs{}, nil)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/providers", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(telemetry.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
