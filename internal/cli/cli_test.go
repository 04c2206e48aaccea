package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// apiStub — минимальный сервер с ответами в формате Reel API.
type apiStub struct {
	mu       sync.Mutex
	requests []string
	users    []string
	bodies   map[string][]byte
}

func newAPIStub(t *testing.T) (*apiStub, *httptest.Server) {
	t.Helper()
	stub := &apiStub{bodies: make(map[string][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{
				"name": "story_to_video",
				"steps": []map[string]any{
					{"index": 0, "type": "generate_script"},
					{"index": 1, "type": "generate_video"},
				},
			}},
			"total": 1,
		})
	})
	mux.HandleFunc("POST /api/v1/workflows/{type}/jobs", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeJSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{
			"job_id": "job-1",
			"tasks":  []map[string]any{{"id": "t-1", "step_index": 0, "step_type": "generate_script", "status": "pending"}},
			"job":    map[string]any{"id": "job-1", "workflow_type": r.PathValue("type"), "status": "pending"},
		}})
	})
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "NOT_FOUND", "message": "job not found"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"job":   map[string]any{"id": r.PathValue("id"), "workflow_type": "script", "status": "completed", "total_steps": 1},
			"tasks": []map[string]any{{"id": "t-1", "step_index": 0, "step_type": "generate_script", "status": "completed", "progress": 100}},
		}})
	})
	mux.HandleFunc("POST /api/v1/jobs/{id}/consume", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"job_id": r.PathValue("id"), "consumed": true}})
	})
	mux.HandleFunc("PUT /api/v1/providers/{name}", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"name": r.PathValue("name")}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return stub, srv
}

func (s *apiStub) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	s.requests = append(s.requests, key)
	s.users = append(s.users, r.Header.Get("X-User-ID"))
	s.bodies[key] = body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--api-url", srv.URL, "--user", "u1"}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestWorkflowList(t *testing.T) {
	_, srv := newAPIStub(t)

	stdout, _, err := run(t, srv, "workflow", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "story_to_video") || !strings.Contains(stdout, "generate_script → generate_video") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestJobStart(t *testing.T) {
	stub, srv := newAPIStub(t)

	_, stderr, err := run(t, srv, "job", "start", "script",
		"--project", "p1",
		"--input-json", `{"duration": 30}`,
		"--input", "idea=a cat in space",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Job started: job-1") {
		t.Errorf("stderr = %q", stderr)
	}

	var req StartJobRequest
	if err := json.Unmarshal(stub.bodies["POST /api/v1/workflows/script/jobs"], &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.ProjectID != "p1" || req.Input["idea"] != "a cat in space" || req.Input["duration"] != float64(30) {
		t.Errorf("unexpected request: %+v", req)
	}
	if stub.users[0] != "u1" {
		t.Errorf("X-User-ID = %q", stub.users[0])
	}
}

func TestJobStart_BadInput(t *testing.T) {
	_, srv := newAPIStub(t)

	if _, _, err := run(t, srv, "job", "start", "script", "--input", "novalue"); err == nil {
		t.Fatal("expected error for malformed --input")
	}
}

func TestJobShow_JSON(t *testing.T) {
	_, srv := newAPIStub(t)

	stdout, _, err := run(t, srv, "--json", "job", "show", "job-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var status JobStatusResponse
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if status.Job.ID != "job-7" || status.Tasks[0].Progress != 100 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestJobShow_APIError(t *testing.T) {
	_, srv := newAPIStub(t)

	_, _, err := run(t, srv, "job", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND error, got %v", err)
	}
}

func TestJobWait_Completed(t *testing.T) {
	_, srv := newAPIStub(t)

	stdout, _, err := run(t, srv, "job", "wait", "job-3", "--interval", "10ms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "completed") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestJobConsume(t *testing.T) {
	_, srv := newAPIStub(t)

	_, stderr, err := run(t, srv, "job", "consume", "job-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Job consumed: job-3") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestProviderImport(t *testing.T) {
	stub, srv := newAPIStub(t)

	path := filepath.Join(t.TempDir(), "providers.toml")
	catalog := `
[[providers]]
name = "acme-text"
category = "text"
url_template = "https://api.acme.test/v1/chat"
response_mapping = { text = "choices.0.message.content" }

[[providers]]
name = "acme-video"
category = "video"
url_template = "https://api.acme.test/v1/video"
response_mapping = { task_id = "id" }
query_url_template = "https://api.acme.test/v1/video/{{task_id}}"
query_response_mapping = { status = "status" }
query_success_condition = 'status == "done"'
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := run(t, srv, "provider", "import", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Provider saved: acme-video") {
		t.Errorf("stderr = %q", stderr)
	}

	want := []string{"PUT /api/v1/providers/acme-text", "PUT /api/v1/providers/acme-video"}
	if strings.Join(stub.requests, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", stub.requests, want)
	}
}

func TestProviderImport_InvalidUploadsNothing(t *testing.T) {
	stub, srv := newAPIStub(t)

	path := filepath.Join(t.TempDir(), "providers.toml")
	catalog := `
[[providers]]
name = "ok"
url_template = "https://x.test"

[[providers]]
name = "async-without-condition"
url_template = "https://x.test"
query_url_template = "https://x.test/{{id}}"
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := run(t, srv, "provider", "import", path); err == nil {
		t.Fatal("expected validation error")
	}
	if len(stub.requests) != 0 {
		t.Errorf("expected no uploads, got %v", stub.requests)
	}
}

func TestParseInput(t *testing.T) {
	input, err := parseInput("", nil)
	if err != nil || input != nil {
		t.Errorf("empty input = %v, %v", input, err)
	}

	input, err = parseInput(`{"a": 1, "b": "x"}`, []string{"b=y", "c=k=v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input["a"] != float64(1) || input["b"] != "y" || input["c"] != "k=v" {
		t.Errorf("input = %v", input)
	}

	if _, err := parseInput("[1]", nil); err == nil {
		t.Error("expected error for non-object JSON")
	}
}
