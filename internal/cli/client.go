package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/Reel/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowResponse — пайплайн из API.
type WorkflowResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       []struct {
		Index      int    `json:"index"`
		Type       string `json:"type"`
		TargetType string `json:"target_type,omitempty"`
	} `json:"steps"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	ProjectID        string         `json:"project_id,omitempty"`
	WorkflowType     string         `json:"workflow_type"`
	Status           string         `json:"status"`
	CurrentStepIndex int            `json:"current_step_index"`
	TotalSteps       int            `json:"total_steps"`
	InputParams      map[string]any `json:"input_params,omitempty"`
	Error            string         `json:"error,omitempty"`
	Consumed         bool           `json:"consumed"`
	CreatedAt        string         `json:"created_at"`
	StartedAt        string         `json:"started_at,omitempty"`
	CompletedAt      string         `json:"completed_at,omitempty"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID          string         `json:"id"`
	StepIndex   int            `json:"step_index"`
	StepType    string         `json:"step_type"`
	TargetType  string         `json:"target_type,omitempty"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	InputParams map[string]any `json:"input_params,omitempty"`
	ResultData  map[string]any `json:"result_data,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
}

// StartJobResponse — ответ на запуск пайплайна.
type StartJobResponse struct {
	JobID string         `json:"job_id"`
	Tasks []TaskResponse `json:"tasks"`
	Job   JobResponse    `json:"job"`
}

// JobStatusResponse — job вместе с tasks.
type JobStatusResponse struct {
	Job   JobResponse    `json:"job"`
	Tasks []TaskResponse `json:"tasks"`
}

// ResumeResponse — ответ на resume.
type ResumeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ConsumeResponse — результат отметки consumed.
type ConsumeResponse struct {
	JobID    string `json:"job_id"`
	Consumed bool   `json:"consumed"`
}

// --- Request types ---

// StartJobRequest — запуск пайплайна.
type StartJobRequest struct {
	ProjectID string         `json:"project_id,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	Workflow string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Reel API.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// userID передаётся в заголовке X-User-ID.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает доступные пайплайны.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// --- Jobs ---

// StartJob запускает пайплайн.
func (c *Client) StartJob(workflowType string, req StartJobRequest) (*StartJobResponse, error) {
	var resp StartJobResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(workflowType)+"/jobs", req, &resp)
	return &resp, err
}

// ListJobs возвращает jobs пользователя.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.Workflow != "" {
		params.Set("workflow", opts.Workflow)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// GetJob возвращает job вместе с tasks.
func (c *Client) GetJob(id string) (*JobStatusResponse, error) {
	var status JobStatusResponse
	err := c.get("/api/v1/jobs/"+url.PathEscape(id), &status)
	return &status, err
}

// ResumeJob продолжает job.
func (c *Client) ResumeJob(id string) (*ResumeResponse, error) {
	var resp ResumeResponse
	err := c.post("/api/v1/jobs/"+url.PathEscape(id)+"/resume", nil, &resp)
	return &resp, err
}

// CancelJob отменяет job.
func (c *Client) CancelJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+url.PathEscape(id)+"/cancel", nil, &job)
	return &job, err
}

// ConsumeJob отмечает результат job как обработанный.
func (c *Client) ConsumeJob(id string) (*ConsumeResponse, error) {
	var resp ConsumeResponse
	err := c.post("/api/v1/jobs/"+url.PathEscape(id)+"/consume", nil, &resp)
	return &resp, err
}

// --- Providers ---

// ListProviders возвращает конфигурации провайдеров.
func (c *Client) ListProviders() ([]domain.ProviderConfig, error) {
	var configs []domain.ProviderConfig
	err := c.list("/api/v1/providers", nil, &configs)
	return configs, err
}

// PutProvider создаёт или заменяет конфигурацию провайдера.
func (c *Client) PutProvider(cfg *domain.ProviderConfig) error {
	return c.put("/api/v1/providers/"+url.PathEscape(cfg.Name), cfg, nil)
}

// DeleteProvider удаляет конфигурацию провайдера.
func (c *Client) DeleteProvider(name string) error {
	return c.delete("/api/v1/providers/" + url.PathEscape(name))
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
