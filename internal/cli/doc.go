// Package cli реализует инструмент командной строки Reel.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Reel API.
// Работает через HTTP. Из внутренних пакетов импортирует только
// domain и provider: файл каталога провайдеров разбирается и
// проверяется локально до загрузки.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Reel API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок. Идентификатор пользователя уходит в X-User-ID.
//
//	client := cli.NewClient("http://localhost:8080", "user-1")
//	job, err := client.StartJob("script", cli.StartJobRequest{...})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: reel job list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: list
//   - job: list, start, show, wait, resume, cancel, consume
//   - provider: list, import, delete
//
// Каждая группа создаётся через фабричную функцию (NewJobCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
