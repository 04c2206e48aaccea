// Package tasks содержит бизнес-обработчики шагов генерации.
//
// Обработчик получает собранные входные данные шага, вызывает модели через
// адаптер провайдеров и возвращает результат простым map. Сохранением
// результата занимается orchestrator: обработчики не пишут в хранилище.
//
// Типы шагов:
//   - generate_script      — сценарий по идее
//   - extract_characters   — персонажи из сценария (JSON от текстовой модели)
//   - extract_scenes       — сцены из сценария
//   - generate_storyboard  — раскадровка по сценам
//   - generate_image       — одиночное изображение
//   - generate_frames      — кадры раскадровки (или один кадр по prompt)
//   - generate_video       — видео из кадра
package tasks
