package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Reel/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobTrigger  MessageType = "job.trigger"
	MessageTypeJobFinished MessageType = "job.finished"
)

// Publisher публикует сообщения в RabbitMQ.
//
// Реализует orchestrator.Dispatcher (Dispatch) и
// orchestrator.EventPublisher (PublishJobFinished).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobTriggerPayload — просьба продвинуть job (start или resume).
type JobTriggerPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobFinishedPayload — job дошёл до completed или failed.
type JobFinishedPayload struct {
	JobID        uuid.UUID        `json:"job_id"`
	UserID       string           `json:"user_id"`
	ProjectID    string           `json:"project_id,omitempty"`
	WorkflowType string           `json:"workflow_type"`
	Status       domain.JobStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	StepIndex    int              `json:"current_step_index"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobFinishedPayload собирает событие из job.
func NewJobFinishedPayload(job *domain.Job) JobFinishedPayload {
	return JobFinishedPayload{
		JobID:        job.ID,
		UserID:       job.UserID,
		ProjectID:    job.ProjectID,
		WorkflowType: job.WorkflowType,
		Status:       job.Status,
		Error:        job.Error,
		StepIndex:    job.CurrentStepIndex,
		FinishedAt:   job.CompletedAt,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.publish(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		AppId:        connectionName,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s/%s: %w", msg.Type, exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// Dispatch публикует job.trigger. Потребитель: reel-engine.
func (p *Publisher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	msg := NewMessage(MessageTypeJobTrigger, JobTriggerPayload{JobID: jobID})
	return p.Publish(ctx, ExchangeJobs, RoutingKeyTrigger, msg)
}

// PublishJobFinished публикует job.finished. Потребители: внешние сервисы.
func (p *Publisher) PublishJobFinished(ctx context.Context, job *domain.Job) error {
	msg := NewMessage(MessageTypeJobFinished, NewJobFinishedPayload(job))
	return p.Publish(ctx, ExchangeJobs, RoutingKeyFinished, msg)
}
