package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

var (
	ErrCircuitOpen     = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Settings configures every breaker a Manager creates.
type Settings struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval clears the closed-state counts.
	Interval time.Duration `mapstructure:"interval"`
	// Timeout is how long the breaker stays open before probing again.
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// DefaultSettings returns the breaker settings used for zero fields.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxRequests == 0 {
		s.MaxRequests = d.MaxRequests
	}
	if s.Interval == 0 {
		s.Interval = d.Interval
	}
	if s.Timeout == 0 {
		s.Timeout = d.Timeout
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = d.FailureThreshold
	}
	return s
}

// Manager hands out one named breaker per capability backend.
type Manager struct {
	settings Settings
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewManager creates an empty breaker manager.
func NewManager(settings Settings, log *zap.Logger) *Manager {
	return &Manager{
		settings: settings.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		log:      log,
	}
}

// Get returns the breaker for name, creating it on first use.
func (m *Manager) Get(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	threshold := m.settings.FailureThreshold
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: m.settings.MaxRequests,
		Interval:    m.settings.Interval,
		Timeout:     m.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			m.log.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	m.breakers[name] = cb
	return cb
}

// BreakerStatus is a point-in-time view of one breaker.
type BreakerStatus struct {
	Name   string           `json:"name"`
	State  string           `json:"state"`
	Counts gobreaker.Counts `json:"counts"`
}

// Status reports every breaker created so far.
func (m *Manager) Status() map[string]BreakerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]BreakerStatus, len(m.breakers))
	for name, cb := range m.breakers {
		status[name] = BreakerStatus{
			Name:   name,
			State:  cb.State().String(),
			Counts: cb.Counts(),
		}
	}
	return status
}

// Execute runs fn behind the named breaker. A caller giving up (context
// cancelled or its deadline passed) is not counted against the backend.
func Execute[T any](ctx context.Context, m *Manager, name string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out       T
		callerErr error
	)

	_, err := m.Get(name).Execute(func() (interface{}, error) {
		res, err := fn(ctx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			callerErr = err
			return nil, nil
		}
		out = res
		return nil, err
	})
	if callerErr != nil {
		var zero T
		return zero, callerErr
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
