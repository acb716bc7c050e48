package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// RabbitMQQueue maps subjects onto durable fanout exchanges.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	mu       sync.RWMutex
	log      *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRabbitMQQueue dials url and keeps reconnecting until Close.
func NewRabbitMQQueue(url string, log *zap.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:    conn,
		channel: ch,
		url:     url,
		log:     log,
		stopCh:  make(chan struct{}),
	}

	go q.monitorConnection(conn)

	log.Info("Successfully connected to RabbitMQ")
	return q, nil
}

// Publish sends a persistent message to the exchange named subject.
func (q *RabbitMQQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.ExchangeDeclare(subject, "fanout", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		subject, "", false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.conn != nil && !q.conn.IsClosed()
}

func (q *RabbitMQQueue) Close() error {
	q.stopOnce.Do(func() { close(q.stopCh) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// monitorConnection redials after the broker drops conn, until Close.
func (q *RabbitMQQueue) monitorConnection(conn *amqp.Connection) {
	for {
		select {
		case reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)):
			if !ok || reason == nil {
				return
			}
			q.log.Warn("RabbitMQ connection lost, reconnecting", zap.String("reason", reason.Reason))
		case <-q.stopCh:
			return
		}

		next, ok := q.redial()
		if !ok {
			return
		}
		conn = next
	}
}

func (q *RabbitMQQueue) redial() (*amqp.Connection, bool) {
	for {
		select {
		case <-time.After(reconnectDelay):
		case <-q.stopCh:
			return nil, false
		}

		conn, err := amqp.Dial(q.url)
		if err != nil {
			q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
			continue
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			continue
		}

		q.mu.Lock()
		q.conn = conn
		q.channel = ch
		q.mu.Unlock()

		q.log.Info("Successfully reconnected to RabbitMQ")
		return conn, true
	}
}
