package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shaiso/Reel/internal/domain"
)

// Request — отрендеренный HTTP-запрос к вендору.
//
// Body — строка (готовый текст) или дерево map/slice, которое
// сериализуется по Content-Type.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Header возвращает значение заголовка без учёта регистра имени.
func (r *Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// SetHeader задаёт заголовок, удаляя все варианты имени в другом регистре.
func (r *Request) SetHeader(name, value string) {
	r.DeleteHeader(name)
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// DeleteHeader удаляет заголовок во всех вариантах регистра.
func (r *Request) DeleteHeader(name string) {
	for k := range r.Headers {
		if strings.EqualFold(k, name) {
			delete(r.Headers, k)
		}
	}
}

// BodyMap возвращает тело как объект. Тело-строка с JSON-объектом
// декодируется и заменяет Body, чтобы изменения попали в запрос.
func (r *Request) BodyMap() (map[string]any, bool) {
	switch b := r.Body.(type) {
	case map[string]any:
		return b, true
	case nil:
		m := make(map[string]any)
		r.Body = m
		return m, true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(b), &m); err != nil {
			return nil, false
		}
		r.Body = m
		return m, true
	default:
		return nil, false
	}
}

// Call — всё, что получает кастомный обработчик.
type Call struct {
	// Config — конфигурация провайдера.
	Config *domain.ProviderConfig

	// Params — нормализованные параметры вызова (без default_params).
	Params map[string]any

	// Request — отрендеренный запрос. Обработчик может его менять.
	Request *Request

	// Send отправляет запрос стандартным путём адаптера и возвращает сырое тело ответа.
	Send func(ctx context.Context, req *Request) ([]byte, error)
}

// Handler — кастомный обработчик провайдера.
// Реализует Caller и/или Querier.
type Handler interface {
	Name() string
}

// Caller заменяет шаблонный submit.
type Caller interface {
	Call(ctx context.Context, call *Call) ([]byte, error)
}

// Querier заменяет шаблонный query.
type Querier interface {
	Query(ctx context.Context, call *Call) ([]byte, error)
}

// HandlerSource — реестр кастомных обработчиков.
type HandlerSource interface {
	Get(name string) (Handler, error)
}
