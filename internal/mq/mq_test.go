package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/telemetry"
)

// fakeAcker записывает ack/nack по delivery tag.
type fakeAcker struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeued int
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued++
	}
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func triggerBody(t *testing.T, jobID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(NewMessage(MessageTypeJobTrigger, JobTriggerPayload{JobID: jobID}))
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestDecodeTrigger(t *testing.T) {
	jobID := uuid.New()

	got, err := decodeTrigger(triggerBody(t, jobID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != jobID {
		t.Errorf("job id = %s, want %s", got, jobID)
	}
}

func TestDecodeTrigger_Invalid(t *testing.T) {
	finished, _ := json.Marshal(NewMessage(MessageTypeJobFinished, JobTriggerPayload{JobID: uuid.New()}))
	empty, _ := json.Marshal(NewMessage(MessageTypeJobTrigger, JobTriggerPayload{}))

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("{")},
		{"bad uuid", []byte(`{"type":"job.trigger","payload":{"job_id":"nope"}}`)},
		{"wrong type", finished},
		{"missing job id", empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeTrigger(tt.body); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDrainTriggers(t *testing.T) {
	acker := &fakeAcker{}
	first, second := uuid.New(), uuid.New()

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: triggerBody(t, first)}
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("garbage")}
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: triggerBody(t, second)}
	close(deliveries)

	var got []uuid.UUID
	drainTriggers(context.Background(), deliveries, func(id uuid.UUID) { got = append(got, id) }, telemetry.Discard())

	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Errorf("handled = %v", got)
	}
	if len(acker.acked) != 2 || acker.acked[0] != 1 || acker.acked[1] != 3 {
		t.Errorf("acked = %v, want [1 3]", acker.acked)
	}
	if len(acker.nacked) != 1 || acker.nacked[0] != 2 || acker.requeued != 0 {
		t.Errorf("nacked = %v (requeued %d), want [2] dead-lettered", acker.nacked, acker.requeued)
	}
}

func TestDrainTriggers_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		drainTriggers(ctx, deliveries, func(uuid.UUID) {}, telemetry.Discard())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not stop after cancel")
	}
}

func TestPublish_NotConnected(t *testing.T) {
	conn := &Connection{logger: telemetry.Discard()}
	p := NewPublisher(conn, nil)

	err := p.Dispatch(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestNewJobFinishedPayload(t *testing.T) {
	done := time.Now().UTC()
	job := &domain.Job{
		ID:               uuid.New(),
		UserID:           "u1",
		ProjectID:        "p1",
		WorkflowType:     "script",
		Status:           domain.JobStatusFailed,
		Error:            "provider timeout",
		CurrentStepIndex: 2,
		CompletedAt:      &done,
	}

	p := NewJobFinishedPayload(job)
	if p.JobID != job.ID || p.UserID != "u1" || p.Status != domain.JobStatusFailed ||
		p.Error != "provider timeout" || p.StepIndex != 2 || p.FinishedAt != &done {
		t.Errorf("unexpected payload: %+v", p)
	}
}
