package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed → (resume) → running
//	(или) → cancelled (из pending, running или failed)
type JobStatus string

const (
	// JobStatusPending — job создан, tasks заведены, выполнение ещё не началось.
	JobStatusPending JobStatus = "pending"

	// JobStatusRunning — job выполняет шаги.
	JobStatusRunning JobStatus = "running"

	// JobStatusCompleted — все шаги выполнены успешно.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — шаг завершился ошибкой. Можно продолжить через resume.
	JobStatusFailed JobStatus = "failed"

	// JobStatusCancelled — job отменён владельцем.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный и advance ничего не делает.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус входит в известный набор.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	pending → processing → completed
//	                     ↘ failed → (resume) → pending
type TaskStatus string

const (
	// TaskStatusPending — task ожидает своей очереди.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusProcessing — task выполняется handler'ом.
	TaskStatusProcessing TaskStatus = "processing"

	// TaskStatusCompleted — task выполнен, result_data заполнен.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed — task завершился ошибкой или был отменён.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если task завершён (в любом статусе).
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}
