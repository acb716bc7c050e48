package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/queue"
	"github.com/seu-repo/ai-maga/internal/domain"
)

const defaultMorning = 9

// Config sets the subject prefix and the timezone used to resolve "when" slots.
type Config struct {
	SubjectPrefix string `mapstructure:"subject_prefix"`
	// Timezone resolves "завтра в 10:00" for the owner; IANA name.
	Timezone string `mapstructure:"timezone"`
}

// job is what the reminder worker consumes.
type job struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at,omitempty"`
	When      string    `json:"when,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Scheduler turns reminder requests into jobs on the message bus. It
// implements ports.ReminderScheduler.
type Scheduler struct {
	queue   queue.MessageQueue
	subject string
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

// New returns a scheduler that publishes jobs on q.
func New(cfg Config, q queue.MessageQueue, log *zap.Logger) *Scheduler {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = queue.DefaultSubjectPrefix
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn("Unknown timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		} else {
			loc = l
		}
	}

	return &Scheduler{
		queue:   q,
		subject: prefix + ".reminders.create",
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
}

// CreateReminder publishes a reminder job and returns the reminder as scheduled.
func (s *Scheduler) CreateReminder(ctx context.Context, req domain.ReminderRequest) (*domain.Reminder, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("reminder: empty text")
	}

	now := s.now().In(s.loc)
	j := job{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Text:      req.Text,
		When:      req.When,
		DueAt:     s.dueAt(now, req),
		Priority:  req.Priority,
		CreatedAt: now,
	}

	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal reminder: %w", err)
	}
	if err := s.queue.Publish(ctx, s.subject, data); err != nil {
		return nil, &domain.ExternalServiceError{Service: "scheduler", Err: err}
	}

	s.log.Info("Reminder scheduled",
		zap.String("reminder_id", j.ID),
		zap.String("user_id", j.UserID),
		zap.Time("due_at", j.DueAt),
	)

	return &domain.Reminder{
		ID:       j.ID,
		UserID:   j.UserID,
		Content:  j.Text,
		DueAt:    j.DueAt,
		When:     j.When,
		Priority: j.Priority,
	}, nil
}

// dueAt resolves a relative duration or a "<day> HH:MM" phrase. A bare clock
// time already past today means tomorrow. Nothing resolvable yields zero.
func (s *Scheduler) dueAt(now time.Time, req domain.ReminderRequest) time.Time {
	if req.Duration > 0 {
		return now.Add(req.Duration)
	}
	if req.When == "" {
		return time.Time{}
	}

	dayOffset, hour, minute := -1, -1, 0
	for _, part := range strings.Fields(req.When) {
		switch part {
		case "today":
			dayOffset = 0
		case "tomorrow":
			dayOffset = 1
		case "day_after_tomorrow":
			dayOffset = 2
		default:
			if t, err := time.Parse("15:04", part); err == nil {
				hour, minute = t.Hour(), t.Minute()
			}
		}
	}

	switch {
	case dayOffset < 0 && hour < 0:
		return time.Time{}
	case hour < 0:
		hour = defaultMorning
	}

	day := max(dayOffset, 0)
	due := time.Date(now.Year(), now.Month(), now.Day()+day, hour, minute, 0, 0, s.loc)
	if dayOffset < 0 && !due.After(now) {
		due = due.AddDate(0, 0, 1)
	}
	return due
}
