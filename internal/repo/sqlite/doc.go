// Package sqlite — встраиваемое хранилище jobs, tasks и провайдеров.
//
// Используется движком на одном узле (store_driver = sqlite) и в тестах
// оркестратора. Схема применяется встроенными миграциями при Open.
package sqlite
