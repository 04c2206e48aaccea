// Package orchestrator управляет выполнением jobs.
//
// Orchestrator отвечает за:
//   - Создание job и всех его tasks при старте пайплайна
//   - Последовательное выполнение шагов (advance)
//   - Resume упавшего job с первого незавершённого шага
//   - Cancel с закрытием открытых tasks
//   - Получение job.trigger из RabbitMQ и восстановление через polling
//
// Гонки между advance, cancel и resume разрешаются условными
// обновлениями хранилища: task захватывается переходом pending → processing,
// результат сохраняется только переходом processing → completed/failed.
package orchestrator
