package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs Exchange = "reel.jobs"
	ExchangeDLQ  Exchange = "reel.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsTrigger  Queue = "jobs.trigger"
	QueueJobsFinished Queue = "jobs.finished"
	QueueDLQJobs      Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyTrigger  RoutingKey = "trigger"
	RoutingKeyFinished RoutingKey = "finished"
	RoutingKeyDLQJobs  RoutingKey = "jobs"
)

// declareTopology объявляет обменники, очереди и привязки. Идемпотентна,
// вызывается при каждом подключении.
func declareTopology(ch *amqp.Channel) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	return bindQueues(ch)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeJobs, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// jobs.trigger — с DLQ: сообщение, которое не удалось обработать дважды, уходит в dlq.jobs
		{QueueJobsTrigger, dlqArgs},

		// jobs.finished — события для внешних потребителей (сохранение результатов, биллинг)
		{QueueJobsFinished, nil},

		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsTrigger, RoutingKeyTrigger, ExchangeJobs},
		{QueueJobsFinished, RoutingKeyFinished, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Reel RabbitMQ Topology:

    reel.jobs (direct)
    ├── jobs.trigger [routing: trigger]
    │       Consumer: reel-engine
    │       DLQ: dlq.jobs
    └── jobs.finished [routing: finished]
            Consumer: collaborators (result persistence, billing)

    reel.dlq (direct)
    └── dlq.jobs [routing: jobs]
            Manual processing
  `
}
