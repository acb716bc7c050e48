package mocks

import (
	"context"
	"sync"
)

// MockMessageQueue records published messages per subject and can answer requests.
type MockMessageQueue struct {
	mu                sync.Mutex
	PublishedMessages map[string][][]byte
	PublishFunc       func(ctx context.Context, subject string, data []byte) error
	RequestFunc       func(ctx context.Context, subject string, data []byte) ([]byte, error)
	Down              bool
}

func NewMockMessageQueue() *MockMessageQueue {
	return &MockMessageQueue{
		PublishedMessages: make(map[string][][]byte),
	}
}

func (m *MockMessageQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, subject, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedMessages[subject] = append(m.PublishedMessages[subject], data)
	return nil
}

func (m *MockMessageQueue) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, subject, data)
	}
	return []byte(`{}`), nil
}

func (m *MockMessageQueue) Healthy() bool { return !m.Down }

func (m *MockMessageQueue) Close() error { return nil }

// GetPublishedMessages returns all messages published to a subject.
func (m *MockMessageQueue) GetPublishedMessages(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.PublishedMessages[subject]...)
}
