package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MessageQueue is the fire-and-forget bus used for domain events and reminder jobs.
type MessageQueue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Healthy() bool
	Close() error
}

// Requester sends a request and waits for a single reply.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Config selects and addresses the bus.
type Config struct {
	// Driver is "nats" or "rabbitmq".
	Driver      string `mapstructure:"driver"`
	NATSURL     string `mapstructure:"nats_url"`
	RabbitMQURL string `mapstructure:"rabbitmq_url"`
	// SubjectPrefix namespaces every subject this service publishes.
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// New connects the configured driver.
func New(cfg Config, log *zap.Logger) (MessageQueue, error) {
	switch cfg.Driver {
	case "", "nats":
		q, err := NewNATSQueue(cfg.NATSURL, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	case "rabbitmq":
		q, err := NewRabbitMQQueue(cfg.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
}
