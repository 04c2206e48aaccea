// Package workflow описывает именованные пайплайны генерации.
//
// Определение — упорядоченный список шагов. Каждый шаг связывает
// сборщик входных данных (fields.BuildInput), обработчик (tasks.Handler)
// и теги типа шага/цели. Определения компилируются при загрузке:
// неизвестное поле или тип шага — ошибка старта, а не выполнения job.
package workflow
