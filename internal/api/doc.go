// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (движок, каталог workflow, провайдеры, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, X-User-ID)
//   - response.go         — унифицированные JSON-ответы и отображение ошибок в статусы
//   - dto.go              — Data Transfer Objects (request/response)
//   - workflow_handler.go — обработчики для /workflows
//   - job_handler.go      — обработчики для /jobs
//   - provider_handler.go — обработчики для /providers
//
// Аутентификация вне API: шлюз проставляет заголовок X-User-ID,
// API только сверяет владельца job.
package api
