package orchestrator

import (
	"github.com/google/uuid"
)

// handleJobTrigger обрабатывает job.trigger.
//
// Продвижение идёт в отдельной горутине, сообщение подтверждается сразу:
// если процесс упадёт, job подберёт polling.
func (o *Orchestrator) handleJobTrigger(jobID uuid.UUID) {
	o.logger.Debug("received job.trigger event", "job_id", jobID)
	o.Trigger(jobID)
}
