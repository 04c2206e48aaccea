package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// activeJobs — jobs, которые продвигаются в этом процессе.
//
// Гарантирует один цикл advance на job внутри процесса. Межпроцессную
// защиту даёт Locker и условные обновления хранилища.
type activeJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*activeJob
}

type activeJob struct {
	// again — пока шёл цикл, job попросили продвинуть ещё раз.
	again bool
}

func newActiveJobs() *activeJobs {
	return &activeJobs{jobs: make(map[uuid.UUID]*activeJob)}
}

// acquire помечает job активным. Если он уже активен, запоминает
// повторный запрос и возвращает false.
func (a *activeJobs) acquire(jobID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if j, ok := a.jobs[jobID]; ok {
		j.again = true
		return false
	}
	a.jobs[jobID] = &activeJob{}
	return true
}

// tryAcquire помечает job активным без запоминания повторного запроса.
func (a *activeJobs) tryAcquire(jobID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.jobs[jobID]; ok {
		return false
	}
	a.jobs[jobID] = &activeJob{}
	return true
}

// release снимает отметку. Если был повторный запрос, отметка остаётся
// и возвращается true: вызывающий должен пройти цикл ещё раз.
func (a *activeJobs) release(jobID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	j, ok := a.jobs[jobID]
	if !ok {
		return false
	}
	if j.again {
		j.again = false
		return true
	}
	delete(a.jobs, jobID)
	return false
}

// forget снимает отметку без учёта повторных запросов.
func (a *activeJobs) forget(jobID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.jobs, jobID)
}

func (a *activeJobs) has(jobID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.jobs[jobID]
	return ok
}

func (a *activeJobs) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.jobs)
}
