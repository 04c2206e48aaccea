// Package repo хранит jobs, tasks и конфигурации провайдеров в PostgreSQL.
//
// Изменения статусов делаются условными UPDATE (WHERE status = ...):
// если строка уже в другом статусе, метод возвращает false, а не ошибку.
// Встраиваемая альтернатива для одного узла — пакет repo/sqlite.
package repo
