package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — метрики движка и адаптера провайдеров.
//
// Все методы безопасны для nil-получателя, поэтому компоненты
// можно собирать без метрик (в тестах).
type Metrics struct {
	jobsStarted    *prometheus.CounterVec
	jobsFinished   *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	providerCalls  *prometheus.CounterVec
	pollIterations *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg. nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		jobsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_jobs_started_total",
			Help: "Jobs created, by workflow.",
		}, []string{"workflow"}),

		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_jobs_finished_total",
			Help: "Jobs that reached a terminal status, by workflow and status.",
		}, []string{"workflow", "status"}),

		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reel_task_duration_seconds",
			Help:    "Task handler execution time.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"step_type", "status"}),

		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_provider_requests_total",
			Help: "Vendor HTTP requests, by provider config, phase (submit/query) and outcome.",
		}, []string{"provider", "phase", "outcome"}),

		pollIterations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reel_provider_poll_iterations",
			Help:    "Status queries needed until an async provider call finished.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"provider"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_api_http_requests_total",
			Help: "HTTP requests handled by reel-api, by method and status code.",
		}, []string{"method", "code"}),
	}
}

// JobStarted учитывает созданный job.
func (m *Metrics) JobStarted(workflow string) {
	if m == nil {
		return
	}
	m.jobsStarted.WithLabelValues(workflow).Inc()
}

// JobFinished учитывает job в финальном статусе.
func (m *Metrics) JobFinished(workflow, status string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(workflow, status).Inc()
}

// TaskDone учитывает выполнение handler'а шага.
func (m *Metrics) TaskDone(stepType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(stepType, status).Observe(d.Seconds())
}

// ProviderRequest учитывает запрос к вендору.
func (m *Metrics) ProviderRequest(provider, phase, outcome string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, phase, outcome).Inc()
}

// PollFinished учитывает количество query-запросов одного вызова.
func (m *Metrics) PollFinished(provider string, iterations int) {
	if m == nil {
		return
	}
	m.pollIterations.WithLabelValues(provider).Observe(float64(iterations))
}

// HTTPRequest учитывает обработанный HTTP-запрос.
func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
