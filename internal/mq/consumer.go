package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// resubscribeDelay — пауза перед повторной подпиской, если соединение живо,
// а канал consumer'а закрылся.
const resubscribeDelay = 5 * time.Second

// TriggerHandler получает job id из job.trigger. Продвижение job идёт
// в фоне, поэтому handler не возвращает ошибку.
type TriggerHandler func(jobID uuid.UUID)

// ConsumeTriggers читает jobs.trigger, пока не отменён ctx или не закрыто
// соединение. После разрыва подписывается заново.
//
// Сообщение подтверждается сразу после вызова handler: если процесс
// упадёт, job подберёт polling. Нераспознанное сообщение уходит в DLQ.
func ConsumeTriggers(ctx context.Context, conn *Connection, prefetch int, handle TriggerHandler) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	logger := conn.logger.With("queue", QueueJobsTrigger)

	for {
		ch, up, err := conn.consumeChannel(prefetch)
		if err == nil {
			var deliveries <-chan amqp.Delivery
			deliveries, err = ch.ConsumeWithContext(ctx, string(QueueJobsTrigger), "", false, false, false, false, nil)
			if err == nil {
				logger.Info("consuming job triggers", "prefetch", prefetch)
				drainTriggers(ctx, deliveries, handle, logger)
			}
			ch.Close()
		}
		if err != nil && !errors.Is(err, ErrNotConnected) {
			logger.Error("failed to subscribe", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.done:
			return ErrClosed
		case <-up:
		case <-time.After(resubscribeDelay):
		}
	}
}

// drainTriggers обрабатывает доставки до отмены ctx или закрытия канала.
func drainTriggers(ctx context.Context, deliveries <-chan amqp.Delivery, handle TriggerHandler, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					logger.Warn("trigger deliveries closed")
				}
				return
			}

			jobID, err := decodeTrigger(d.Body)
			if err != nil {
				logger.Error("malformed job.trigger, dead-lettering", "message_id", d.MessageId, "error", err)
				if err := d.Nack(false, false); err != nil {
					logger.Warn("nack failed", "error", err)
				}
				continue
			}

			handle(jobID)
			if err := d.Ack(false); err != nil {
				logger.Warn("ack failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// decodeTrigger достаёт job id из тела job.trigger.
func decodeTrigger(body []byte) (uuid.UUID, error) {
	var msg struct {
		Type    MessageType       `json:"type"`
		Payload JobTriggerPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return uuid.Nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type != MessageTypeJobTrigger {
		return uuid.Nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.Payload.JobID == uuid.Nil {
		return uuid.Nil, errors.New("missing job_id")
	}
	return msg.Payload.JobID, nil
}
