package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shaiso/Reel/internal/engine"
)

const (
	// maxResponseBody — ограничение на размер читаемого ответа вендора (10MB).
	maxResponseBody = 10 * 1024 * 1024

	// maxErrorBody — сколько тела ответа сохранять в HTTPError.
	maxErrorBody = 512
)

// BreakerConfig — настройки circuit breaker'а на провайдера.
type BreakerConfig struct {
	// Enabled включает breaker.
	Enabled bool

	// MaxFailures — сколько подряд неудачных запросов размыкают цепь (default: 5).
	MaxFailures uint32

	// OpenTimeout — сколько цепь остаётся разомкнутой (default: 30s).
	OpenTimeout time.Duration
}

// breakers — набор circuit breaker'ов по имени провайдера.
type breakers struct {
	cfg BreakerConfig
	mu  sync.Mutex
	m   map[string]*gobreaker.CircuitBreaker
}

func newBreakers(cfg BreakerConfig) *breakers {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &breakers{cfg: cfg, m: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *breakers) get(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.m[name]; ok {
		return cb
	}
	maxFailures := b.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Ошибки клиента (4xx) и отмена не говорят о недоступности вендора
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				return !httpErr.Temporary()
			}
			return false
		},
	})
	b.m[name] = cb
	return cb
}

// execute выполняет fn через breaker провайдера.
func (b *breakers) execute(name string, fn func() ([]byte, error)) ([]byte, error) {
	if b == nil || !b.cfg.Enabled {
		return fn()
	}
	out, err := b.get(name).Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, name, err)
	}
	raw, _ := out.([]byte)
	return raw, err
}

// doHTTP отправляет запрос и возвращает сырое тело 2xx ответа.
func doHTTP(ctx context.Context, client *http.Client, providerName string, req *Request) ([]byte, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
		if body == nil {
			method = http.MethodGet
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    vendorMessage(raw),
			Body:       truncate(string(raw), maxErrorBody),
		}
	}

	return raw, nil
}

// encodeBody сериализует тело запроса по Content-Type.
// Возвращает тело и Content-Type по умолчанию.
func encodeBody(req *Request) ([]byte, string, error) {
	switch b := req.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if b == "" {
			return nil, "", nil
		}
		return []byte(b), "application/json", nil
	case []byte:
		return b, "application/json", nil
	}

	ct := strings.ToLower(req.Header("Content-Type"))
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if m, ok := req.Body.(map[string]any); ok {
			return []byte(formEncode(m)), "", nil
		}
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal body: %w", err)
	}
	return data, "application/json", nil
}

func formEncode(m map[string]any) string {
	values := url.Values{}
	for k, v := range m {
		switch x := v.(type) {
		case []any:
			for _, item := range x {
				values.Add(k, engine.Render("{{v}}", map[string]any{"v": item}))
			}
		default:
			values.Set(k, engine.Render("{{v}}", map[string]any{"v": v}))
		}
	}
	return values.Encode()
}

// ParseResponse разбирает тело ответа вендора.
//
// Сначала JSON; если не получилось, form-urlencoded ("a=1&b=2").
// Иначе ErrMalformedResponse.
func ParseResponse(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var tree any
	jsonErr := json.Unmarshal(trimmed, &tree)
	if jsonErr == nil {
		return tree, nil
	}

	if form, ok := parseForm(string(trimmed)); ok {
		return form, nil
	}

	return nil, fmt.Errorf("%w: %v (body: %s)", ErrMalformedResponse, jsonErr, truncate(string(trimmed), 120))
}

// parseForm разбирает form-urlencoded тело. Одиночные значения
// становятся строками, повторяющиеся — массивами.
func parseForm(s string) (map[string]any, bool) {
	if !strings.Contains(s, "=") || strings.ContainsAny(s, " \t\r\n{}<>\"") {
		return nil, false
	}
	values, err := url.ParseQuery(s)
	if err != nil || len(values) == 0 {
		return nil, false
	}

	out := make(map[string]any, len(values))
	for k, vs := range values {
		if k == "" {
			return nil, false
		}
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		items := make([]any, len(vs))
		for i, v := range vs {
			items[i] = v
		}
		out[k] = items
	}
	return out, true
}

// vendorMessagePaths — где вендоры обычно кладут текст ошибки.
var vendorMessagePaths = []string{
	"error.message",
	"message",
	"error_description",
	"error",
	"msg",
	"detail",
	"errors.0.message",
	"data.message",
}

// vendorMessage пытается достать читаемое сообщение об ошибке из тела.
func vendorMessage(raw []byte) string {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return truncate(strings.TrimSpace(string(raw)), 200)
	}
	for _, path := range vendorMessagePaths {
		if v, ok := engine.Lookup(tree, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
