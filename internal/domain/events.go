package domain

import "time"

type EventType string

const (
	EventIntentDetected EventType = "intent.detected"
	EventPlanFinished   EventType = "plan.finished"
)

// Event is published on the message bus.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	Intent     Intent         `json:"intent,omitempty"`
	PlanID     string         `json:"plan_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
