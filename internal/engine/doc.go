// Package engine содержит примитивы, на которых держится декларативный вызов провайдеров.
//
// Включает:
//   - context.go   — контекст шага: входные параметры job и результаты прошлых шагов
//   - template.go  — подстановка плейсхолдеров {{name}} в URL, заголовки и тело запроса
//   - path.go      — извлечение значений по dot-path ("data.items.0.url")
//   - condition.go — песочница для булевых условий ("status == \"done\" && code != 1")
//
// Пакет не делает сетевых вызовов и не знает о хранилище.
package engine
