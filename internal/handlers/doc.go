// Package handlers содержит кастомные обработчики провайдеров.
//
// Обработчик подключается по имени из конфигурации провайдера
// (custom_handler / custom_query_handler) и заменяет шаблонный submit
// и/или query. Он получает уже отрендеренный запрос и может его менять.
//
// Включает:
//   - registry.go         — Registry: Init/Get, кэш, проверка имён
//   - jwt_token.go        — подписанный короткоживущий токен вместо статического ключа
//   - reference_images.go — раскладка массива reference_images в два именованных поля
//   - reasoning_mode.go   — флаг расширенного рассуждения и удаление несовместимых полей
package handlers
