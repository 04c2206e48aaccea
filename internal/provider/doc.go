// Package provider вызывает внешние модели по декларативной конфигурации.
//
// Включает:
//   - adapter.go   — Adapter.Execute: рендер запроса, submit, опрос асинхронных провайдеров
//   - transport.go — HTTP-отправка, circuit breaker, разбор ответа (JSON, затем form-urlencoded)
//   - catalog.go   — источники конфигураций (StaticCatalog, TOML-файлы)
//   - request.go   — отрендеренный запрос и контракт кастомных обработчиков
//
// Новый вендор подключается записью конфигурации. Если шаблонов не хватает,
// конфигурация называет кастомный обработчик (см. пакет handlers).
package provider
