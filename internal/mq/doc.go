// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение: reconnect, publisher confirms, канал consumer'а
//   - topology.go   — объявление exchanges, queues, bindings при каждом подключении
//   - publisher.go  — публикация job.trigger и job.finished
//   - consumer.go   — потребление jobs.trigger движком
//
// Типы сообщений:
//   - job.trigger    — продвинуть job (после start или resume в API-процессе)
//   - job.finished   — job завершён (completed/failed), для внешних потребителей
//
// Exchanges:
//   - reel.jobs      — события jobs
//   - reel.dlq       — dead letter queue
//
// Без RabbitMQ движок работает в одном процессе: job запускается горутиной,
// а потерянные сообщения подбирает периодический опрос хранилища.
package mq
