package scheduler

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

var fixedNow = time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

func newTestScheduler(q *mocks.MockMessageQueue) *Scheduler {
	s := New(Config{}, q, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestCreateReminder_PublishesJob(t *testing.T) {
	q := mocks.NewMockMessageQueue()
	s := newTestScheduler(q)

	r, err := s.CreateReminder(context.Background(), domain.ReminderRequest{
		UserID:   "u1",
		Text:     "позвонить маме",
		When:     "tomorrow 10:00",
		Priority: 1,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), r.DueAt)
	assert.Equal(t, "Напоминание создано: позвонить маме (tomorrow 10:00)", r.Text())

	msgs := q.GetPublishedMessages("maga.reminders.create")
	require.Len(t, msgs, 1)
	var j job
	require.NoError(t, json.Unmarshal(msgs[0], &j))
	assert.Equal(t, r.ID, j.ID)
	assert.Equal(t, "u1", j.UserID)
	assert.Equal(t, 1, j.Priority)
}

func TestDueAt(t *testing.T) {
	s := newTestScheduler(mocks.NewMockMessageQueue())

	tests := []struct {
		name string
		req  domain.ReminderRequest
		want time.Time
	}{
		{"duration wins", domain.ReminderRequest{When: "tomorrow", Duration: 30 * time.Minute}, fixedNow.Add(30 * time.Minute)},
		{"day only", domain.ReminderRequest{When: "day_after_tomorrow"}, time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)},
		{"today with time", domain.ReminderRequest{When: "today 18:15"}, time.Date(2024, 5, 1, 18, 15, 0, 0, time.UTC)},
		{"later today", domain.ReminderRequest{When: "16:00"}, time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)},
		{"clock already passed", domain.ReminderRequest{When: "09:00"}, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		{"nothing", domain.ReminderRequest{}, time.Time{}},
		{"unparseable", domain.ReminderRequest{When: "someday"}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.dueAt(fixedNow, tt.req))
		})
	}
}

func TestCreateReminder_Errors(t *testing.T) {
	q := mocks.NewMockMessageQueue()
	q.PublishFunc = func(context.Context, string, []byte) error { return errors.New("nats: connection closed") }
	s := newTestScheduler(q)

	_, err := s.CreateReminder(context.Background(), domain.ReminderRequest{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrExternalService)

	_, err = s.CreateReminder(context.Background(), domain.ReminderRequest{Text: "  "})
	assert.Error(t, err)
}
