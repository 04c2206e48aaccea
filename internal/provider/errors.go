package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Ошибки адаптера провайдеров.
var (
	// ErrModelNotFound — нет конфигурации провайдера с таким именем.
	ErrModelNotFound = errors.New("model not found")

	// ErrMalformedResponse — ответ вендора не JSON и не form-urlencoded.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrProviderHTTP — вендор ответил не-2xx статусом.
	ErrProviderHTTP = errors.New("provider http error")

	// ErrProviderTaskFailed — асинхронная задача вендора завершилась неудачей.
	ErrProviderTaskFailed = errors.New("provider task failed")

	// ErrProviderTimeout — опрос статуса превысил максимальную длительность.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderUnavailable — circuit breaker провайдера разомкнут.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidConfig — конфигурация провайдера некорректна.
	ErrInvalidConfig = errors.New("invalid provider config")
)

// HTTPError — не-2xx ответ вендора.
type HTTPError struct {
	Provider   string
	StatusCode int
	Message    string // сообщение вендора, если удалось извлечь
	Body       string // начало тела ответа
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: status %d: %s", ErrProviderHTTP, e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrProviderHTTP, e.StatusCode, msg)
}

// Unwrap позволяет проверять errors.Is(err, ErrProviderHTTP).
func (e *HTTPError) Unwrap() error {
	return ErrProviderHTTP
}

// Temporary сообщает, имеет ли смысл повторить запрос.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// TaskFailedError — вендор сообщил о неудаче через query_fail_condition.
type TaskFailedError struct {
	Provider string
	Fields   map[string]any // извлечено по query_fail_mapping
}

// Error реализует интерфейс error.
func (e *TaskFailedError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", ErrProviderTaskFailed, e.Provider)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s: %s", ErrProviderTaskFailed, e.Provider, strings.Join(parts, ", "))
}

// Unwrap позволяет проверять errors.Is(err, ErrProviderTaskFailed).
func (e *TaskFailedError) Unwrap() error {
	return ErrProviderTaskFailed
}
