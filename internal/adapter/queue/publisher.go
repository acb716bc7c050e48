package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

const DefaultSubjectPrefix = "maga"

// EventPublisher serializes domain events onto "<prefix>.events.<type>".
// It implements ports.EventPublisher.
type EventPublisher struct {
	queue  MessageQueue
	prefix string
	log    *zap.Logger
}

// NewEventPublisher publishes under prefix, e.g. "maga.events.plan.finished".
func NewEventPublisher(queue MessageQueue, prefix string, log *zap.Logger) *EventPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &EventPublisher{queue: queue, prefix: prefix, log: log}
}

// Subject returns the subject events of type t are published on.
func (p *EventPublisher) Subject(t domain.EventType) string {
	return fmt.Sprintf("%s.events.%s", p.prefix, t)
}

// Publish encodes event as JSON.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	if err := p.queue.Publish(ctx, p.Subject(event.Type), data); err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}

	telemetry.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
	p.log.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
	)
	return nil
}
