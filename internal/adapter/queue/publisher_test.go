package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/mocks"
)

func TestEventPublisher_Publish(t *testing.T) {
	q := mocks.NewMockMessageQueue()
	p := NewEventPublisher(q, "", zap.NewNop())

	event := domain.Event{
		ID:         "evt-1",
		Type:       domain.EventPlanFinished,
		UserID:     "u1",
		Intent:     domain.IntentHHSearch,
		PlanID:     "plan-1",
		Payload:    map[string]any{"status": "completed"},
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), event))

	msgs := q.GetPublishedMessages("maga.events.plan.finished")
	require.Len(t, msgs, 1)

	var got domain.Event
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.PlanID, got.PlanID)
	assert.Equal(t, "completed", got.Payload["status"])
}

func TestEventPublisher_QueueError(t *testing.T) {
	q := mocks.NewMockMessageQueue()
	q.PublishFunc = func(context.Context, string, []byte) error { return errors.New("nats: connection closed") }
	p := NewEventPublisher(q, "test", zap.NewNop())

	err := p.Publish(context.Background(), domain.Event{ID: "e", Type: domain.EventIntentDetected})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent.detected")
	assert.Equal(t, "test.events.intent.detected", p.Subject(domain.EventIntentDetected))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "kafka"}, zap.NewNop())
	assert.Error(t, err)
}
