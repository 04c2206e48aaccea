package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	connectionName = "reel"
	heartbeat      = 10 * time.Second

	minRedialDelay = time.Second
	maxRedialDelay = 30 * time.Second
)

// Ошибки соединения.
var (
	ErrClosed       = errors.New("rabbitmq connection closed")
	ErrNotConnected = errors.New("rabbitmq not connected")
	ErrNacked       = errors.New("rabbitmq rejected message")
)

// Connection — соединение Reel с RabbitMQ.
//
// Публикация идёт через один канал в confirm-режиме: Dispatch возвращает
// nil, только когда брокер принял job.trigger. Consumer открывает свой
// канал, чтобы его prefetch и ошибки не задевали публикацию.
// После разрыва соединение восстанавливается, топология объявляется заново.
type Connection struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
	// up закрывается при следующем успешном подключении
	up     chan struct{}
	closed bool
	done   chan struct{}
}

// Dial подключается к RabbitMQ и объявляет топологию Reel.
func Dial(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:    url,
		logger: logger,
		up:     make(chan struct{}),
		done:   make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watch()
	return c, nil
}

func (c *Connection) connect() error {
	cfg := amqp.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: amqp.NewConnectionProperties(),
	}
	cfg.Properties.SetClientConnectionName(connectionName)

	conn, err := amqp.DialConfig(c.url, cfg)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open publish channel: %w", err)
	}
	if err := declareTopology(pub); err != nil {
		conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return ErrClosed
	}
	c.conn, c.pub = conn, pub
	close(c.up)
	c.up = make(chan struct{})
	return nil
}

// watch ждёт разрыва и переподключается, пока соединение не закрыто.
func (c *Connection) watch() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.done:
			return
		case err := <-lost:
			c.logger.Warn("rabbitmq connection lost", "error", err)
		}

		c.mu.Lock()
		c.pub = nil
		c.mu.Unlock()

		if !c.redial() {
			return
		}
	}
}

func (c *Connection) redial() bool {
	delay := minRedialDelay
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		err := c.connect()
		if err == nil {
			c.logger.Info("reconnected to rabbitmq")
			return true
		}
		if errors.Is(err, ErrClosed) {
			return false
		}
		c.logger.Warn("rabbitmq reconnect failed", "error", err, "retry_in", delay)
		delay = min(delay*2, maxRedialDelay)
	}
}

// publish отправляет сообщение и ждёт подтверждения брокера.
func (c *Connection) publish(ctx context.Context, exchange Exchange, key RoutingKey, msg amqp.Publishing) error {
	c.mu.Lock()
	ch := c.pub
	c.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, string(exchange), string(key), false, false, msg)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

// consumeChannel открывает канал для consumer. up закрывается, когда
// соединение будет установлено заново.
func (c *Connection) consumeChannel(prefetch int) (ch *amqp.Channel, up <-chan struct{}, err error) {
	c.mu.Lock()
	conn := c.conn
	up = c.up
	c.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil, up, ErrNotConnected
	}
	ch, err = conn.Channel()
	if err != nil {
		return nil, up, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, up, fmt.Errorf("set qos: %w", err)
	}
	return ch, up, nil
}

// Close закрывает соединение и останавливает переподключение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	c.pub = nil

	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	// Каналы закрываются вместе с соединением
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	c.logger.Info("rabbitmq connection closed")
	return nil
}
