package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSQueue publishes over NATS core and also serves request/reply for the
// desktop agent.
type NATSQueue struct {
	conn *nats.Conn
	log  *zap.Logger
}

// NewNATSQueue connects with unlimited reconnects.
func NewNATSQueue(url string, log *zap.Logger) (*NATSQueue, error) {
	nc, err := nats.Connect(url,
		nats.Name("ai-maga"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrlRedacted()))
	return &NATSQueue{
		conn: nc,
		log:  log,
	}, nil
}

func (q *NATSQueue) Publish(_ context.Context, subject string, data []byte) error {
	return q.conn.Publish(subject, data)
}

// Request waits for a single reply until ctx is done.
func (q *NATSQueue) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := q.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

func (q *NATSQueue) Healthy() bool {
	return q.conn.IsConnected()
}

// Close drains pending messages before closing.
func (q *NATSQueue) Close() error {
	return q.conn.Drain()
}
