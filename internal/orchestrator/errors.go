package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrJobNotFound — job не найден в хранилище.
	ErrJobNotFound = errors.New("job not found")

	// ErrStepDefinitionMissing — число tasks job и шагов определения разошлось.
	ErrStepDefinitionMissing = errors.New("step definition missing")

	// ErrInputBuildFailed — сборщик входных данных шага вернул ошибку.
	ErrInputBuildFailed = errors.New("input build failed")

	// ErrJobNotResumable — job completed или cancelled.
	ErrJobNotResumable = errors.New("job cannot be resumed")

	// ErrJobCompleted — операция запрещена для completed job.
	ErrJobCompleted = errors.New("job already completed")

	// ErrJobNotCompleted — результат ещё нельзя забрать.
	ErrJobNotCompleted = errors.New("job is not completed")

	// ErrNotOwner — job принадлежит другому пользователю.
	ErrNotOwner = errors.New("job belongs to another user")

	// ErrJobAlreadyActive — job уже продвигается в этом процессе или под чужим локом.
	ErrJobAlreadyActive = errors.New("job already being processed")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
