package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/engine"
	"github.com/shaiso/Reel/internal/repo"
	"github.com/shaiso/Reel/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval   = 3 * time.Second
	defaultMaxDuration    = 10 * time.Minute
	defaultRequestTimeout = 60 * time.Second
	defaultMaxQueryErrors = 3
	defaultProgressEnd    = 99
)

// Фазы вызова для логов и метрик.
const (
	phaseSubmit = "submit"
	phaseQuery  = "query"
)

// ExecuteOptions — параметры одного вызова Execute.
type ExecuteOptions struct {
	// Interval — пауза между query-запросами (default: 3s).
	Interval time.Duration

	// MaxDuration — максимальная длительность опроса (default: 10m).
	MaxDuration time.Duration

	// ProgressStart и ProgressEnd — границы, в которые масштабируется прогресс опроса.
	// Если ProgressEnd <= ProgressStart, используется 99.
	ProgressStart int
	ProgressEnd   int

	// OnProgress вызывается между query-запросами. Может быть nil.
	OnProgress func(percent int)
}

// Adapter выполняет вызовы моделей по декларативной конфигурации.
//
// Adapter:
//   - Находит конфигурацию провайдера по имени модели
//   - Рендерит submit-запрос из шаблонов
//   - Отправляет его сам или через кастомный обработчик
//   - Для асинхронных провайдеров опрашивает статус до условия успеха/неудачи
//   - Извлекает поля результата по маппингам
type Adapter struct {
	catalog  Catalog
	handlers HandlerSource
	client   *http.Client
	breakers *breakers
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	defaultInterval    time.Duration
	defaultMaxDuration time.Duration
	maxQueryErrors     int

	conditions sync.Map // string → *engine.Condition
}

// Config — конфигурация Adapter.
type Config struct {
	// Catalog — источник конфигураций провайдеров.
	Catalog Catalog

	// Handlers — реестр кастомных обработчиков. Может быть nil.
	Handlers HandlerSource

	// HTTPClient — клиент для запросов к вендорам.
	// По умолчанию клиент с таймаутом RequestTimeout.
	HTTPClient     *http.Client
	RequestTimeout time.Duration

	// Breaker — circuit breaker на провайдера.
	Breaker BreakerConfig

	// Опрос асинхронных провайдеров
	PollInterval   time.Duration // default: 3s
	MaxDuration    time.Duration // default: 10m
	MaxQueryErrors int           // подряд идущие временные ошибки query (default: 3)

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewAdapter создаёт новый Adapter.
func NewAdapter(cfg Config) *Adapter {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}

	maxQueryErrors := cfg.MaxQueryErrors
	if maxQueryErrors <= 0 {
		maxQueryErrors = defaultMaxQueryErrors
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		catalog:            cfg.Catalog,
		handlers:           cfg.Handlers,
		client:             client,
		breakers:           newBreakers(cfg.Breaker),
		metrics:            cfg.Metrics,
		logger:             logger,
		defaultInterval:    interval,
		defaultMaxDuration: maxDuration,
		maxQueryErrors:     maxQueryErrors,
	}
}

// Execute вызывает модель model с нормализованными параметрами.
//
// Для синхронного провайдера возвращает поля response_mapping.
// Для асинхронного — поля query_success_mapping после успешного опроса.
func (a *Adapter) Execute(ctx context.Context, model string, params map[string]any, opts ExecuteOptions) (map[string]any, error) {
	// 1. Находим конфигурацию провайдера
	cfg, err := a.catalog.Provider(ctx, model)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, ErrModelNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, model)
		}
		return nil, fmt.Errorf("get provider config: %w", err)
	}

	logger := a.logger.With("model", cfg.Name, "provider", cfg.Provider)

	// 2. Рендерим submit-запрос
	merged := engine.MergeParams(cfg.DefaultParams, params)
	req := &Request{
		Method:  cfg.RequestMethod,
		URL:     engine.RenderURL(cfg.URLTemplate, merged),
		Headers: engine.RenderHeaders(cfg.HeadersTemplate, merged),
		Body:    engine.RenderBody(cfg.BodyTemplate, merged),
	}

	// 3-4. Отправляем (сами или через кастомный обработчик)
	raw, err := a.submit(ctx, cfg, params, req)
	if err != nil {
		return nil, err
	}

	tree, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	// 5. Извлекаем поля
	submitted := extractOrWhole(tree, cfg.ResponseMapping)
	if !submitted.Complete() {
		logger.Warn("submit response is missing mapped fields", "missing", submitted.Missing)
	}

	// 6. Синхронный провайдер
	if !cfg.IsAsync() {
		logger.Debug("sync provider call finished")
		return submitted.Fields, nil
	}

	// 7. Асинхронный: опрос
	return a.poll(ctx, cfg, params, engine.MergeParams(merged, submitted.Fields), opts, logger)
}

// submit отправляет submit-запрос.
func (a *Adapter) submit(ctx context.Context, cfg *domain.ProviderConfig, params map[string]any, req *Request) ([]byte, error) {
	if cfg.CustomHandler != "" {
		h, err := a.handler(cfg.CustomHandler)
		if err != nil {
			return nil, err
		}
		if caller, ok := h.(Caller); ok {
			raw, err := caller.Call(ctx, &Call{
				Config:  cfg,
				Params:  params,
				Request: req,
				Send:    a.sender(cfg, phaseSubmit),
			})
			if err != nil {
				return nil, fmt.Errorf("custom handler %s: %w", cfg.CustomHandler, err)
			}
			return raw, nil
		}
	}
	return a.send(ctx, cfg, phaseSubmit, req)
}

// query отправляет query-запрос.
func (a *Adapter) query(ctx context.Context, cfg *domain.ProviderConfig, params map[string]any, req *Request) ([]byte, error) {
	if name := cfg.QueryHandlerName(); name != "" {
		h, err := a.handler(name)
		if err != nil {
			return nil, err
		}
		if querier, ok := h.(Querier); ok {
			raw, err := querier.Query(ctx, &Call{
				Config:  cfg,
				Params:  params,
				Request: req,
				Send:    a.sender(cfg, phaseQuery),
			})
			if err != nil {
				return nil, fmt.Errorf("custom query handler %s: %w", name, err)
			}
			return raw, nil
		}
	}
	return a.send(ctx, cfg, phaseQuery, req)
}

func (a *Adapter) handler(name string) (Handler, error) {
	if a.handlers == nil {
		return nil, fmt.Errorf("custom handler %q configured but no handler registry is set", name)
	}
	return a.handlers.Get(name)
}

// sender возвращает функцию отправки для кастомных обработчиков.
func (a *Adapter) sender(cfg *domain.ProviderConfig, phase string) func(context.Context, *Request) ([]byte, error) {
	return func(ctx context.Context, req *Request) ([]byte, error) {
		return a.send(ctx, cfg, phase, req)
	}
}

// send выполняет HTTP-запрос через breaker провайдера и учитывает метрики.
func (a *Adapter) send(ctx context.Context, cfg *domain.ProviderConfig, phase string, req *Request) ([]byte, error) {
	raw, err := a.breakers.execute(cfg.Name, func() ([]byte, error) {
		return doHTTP(ctx, a.client, cfg.Name, req)
	})

	outcome := "ok"
	var httpErr *HTTPError
	switch {
	case err == nil:
	case errors.As(err, &httpErr):
		outcome = fmt.Sprintf("http_%d", httpErr.StatusCode)
	case errors.Is(err, ErrProviderUnavailable):
		outcome = "breaker_open"
	default:
		outcome = "transport_error"
	}
	a.metrics.ProviderRequest(cfg.Name, phase, outcome)

	return raw, err
}

// poll опрашивает статус асинхронной задачи вендора.
func (a *Adapter) poll(
	ctx context.Context,
	cfg *domain.ProviderConfig,
	params map[string]any,
	queryParams map[string]any,
	opts ExecuteOptions,
	logger *slog.Logger,
) (map[string]any, error) {
	successCond, err := a.condition(cfg.QuerySuccessCondition)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: query_success_condition: %v", ErrInvalidConfig, cfg.Name, err)
	}
	failCond, err := a.condition(cfg.QueryFailCondition)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: query_fail_condition: %v", ErrInvalidConfig, cfg.Name, err)
	}
	if successCond == nil {
		return nil, fmt.Errorf("%w: %s: async provider without query_success_condition", ErrInvalidConfig, cfg.Name)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = a.defaultInterval
	}
	maxDuration := opts.MaxDuration
	if maxDuration <= 0 {
		maxDuration = a.defaultMaxDuration
	}
	progressStart, progressEnd := opts.ProgressStart, opts.ProgressEnd
	if progressEnd <= progressStart {
		progressEnd = defaultProgressEnd
	}

	start := time.Now()
	consecutiveErrors := 0

	for attempt := 1; ; attempt++ {
		req := &Request{
			Method:  cfg.QueryMethod,
			URL:     engine.RenderURL(cfg.QueryURLTemplate, queryParams),
			Headers: engine.RenderHeaders(cfg.QueryHeadersTemplate, queryParams),
			Body:    engine.RenderBody(cfg.QueryBodyTemplate, queryParams),
		}
		if req.Method == "" && req.Body == nil {
			req.Method = http.MethodGet
		}

		raw, err := a.query(ctx, cfg, params, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			consecutiveErrors++
			if !isTemporary(err) || consecutiveErrors >= a.maxQueryErrors {
				return nil, err
			}
			logger.Warn("status query failed, will retry",
				"attempt", attempt,
				"consecutive_errors", consecutiveErrors,
				"error", err,
			)
		} else {
			consecutiveErrors = 0

			tree, err := ParseResponse(raw)
			if err != nil {
				return nil, err
			}
			vars := engine.Extract(tree, cfg.QueryResponseMapping).Fields

			done, err := successCond.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: evaluate success condition: %v", ErrInvalidConfig, cfg.Name, err)
			}
			if done {
				a.metrics.PollFinished(cfg.Name, attempt)
				if opts.OnProgress != nil {
					opts.OnProgress(progressEnd)
				}
				result := vars
				if len(cfg.QuerySuccessMapping) > 0 {
					ex := engine.Extract(tree, cfg.QuerySuccessMapping)
					if !ex.Complete() {
						logger.Warn("success response is missing mapped fields", "missing", ex.Missing)
					}
					result = ex.Fields
				}
				logger.Debug("async provider call finished", "queries", attempt, "elapsed", time.Since(start))
				return result, nil
			}

			failed, err := failCond.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: evaluate fail condition: %v", ErrInvalidConfig, cfg.Name, err)
			}
			if failed {
				a.metrics.PollFinished(cfg.Name, attempt)
				fields := vars
				if len(cfg.QueryFailMapping) > 0 {
					fields = engine.Extract(tree, cfg.QueryFailMapping).Fields
				}
				return nil, &TaskFailedError{Provider: cfg.Name, Fields: fields}
			}
		}

		elapsed := time.Since(start)
		if elapsed >= maxDuration {
			a.metrics.PollFinished(cfg.Name, attempt)
			return nil, fmt.Errorf("%w: %s: no result after %s (%d queries)",
				ErrProviderTimeout, cfg.Name, elapsed.Round(time.Millisecond), attempt)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(scaleProgress(progressStart, progressEnd, elapsed, maxDuration))
		}

		if err := sleep(ctx, min(interval, maxDuration-elapsed)); err != nil {
			return nil, err
		}
	}
}

// condition возвращает разобранное условие из кэша.
func (a *Adapter) condition(src string) (*engine.Condition, error) {
	if src == "" {
		return nil, nil
	}
	if c, ok := a.conditions.Load(src); ok {
		return c.(*engine.Condition), nil
	}
	c, err := engine.ParseCondition(src)
	if err != nil {
		return nil, err
	}
	a.conditions.Store(src, c)
	return c, nil
}

// extractOrWhole извлекает поля по маппингу. Без маппинга отдаёт ответ целиком.
func extractOrWhole(tree any, mapping map[string]string) engine.Extraction {
	if len(mapping) > 0 {
		return engine.Extract(tree, mapping)
	}
	if m, ok := tree.(map[string]any); ok {
		return engine.Extraction{Fields: m}
	}
	return engine.Extraction{Fields: map[string]any{"result": tree}}
}

// isTemporary решает, стоит ли продолжать опрос после ошибки query.
func isTemporary(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrProviderUnavailable) {
		return false
	}
	// Сетевые ошибки транспорта
	return true
}

// scaleProgress переводит долю прошедшего времени в прогресс [start, end).
func scaleProgress(start, end int, elapsed, total time.Duration) int {
	if total <= 0 {
		return start
	}
	frac := float64(elapsed) / float64(total)
	if frac > 1 {
		frac = 1
	}
	p := start + int(float64(end-start)*frac)
	if p >= end {
		p = end - 1
	}
	if p < start {
		p = start
	}
	return p
}

// sleep ждёт d или отмены контекста.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
