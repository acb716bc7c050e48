package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Reporter is satisfied by the message queue adapters.
type Reporter interface {
	Healthy() bool
}

// Config lists what the service checks. Nil dependencies are skipped.
type Config struct {
	Version  string
	Redis    redis.Cmdable
	Queue    Reporter
	Breakers *circuitbreaker.Manager
}

// Service aggregates dependency checks behind /ready. Redis and
// open breakers only degrade the service: the rate limiter falls back to
// memory and plans report failed steps instead of hanging.
type Service struct {
	startTime time.Time
	version   string
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// NewService registers a checker for every configured dependency.
func NewService(cfg Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   cfg.Version,
		checkers:  make(map[string]Checker),
		log:       log,
	}

	if cfg.Redis != nil {
		s.RegisterChecker("redis", redisChecker(cfg.Redis, log))
	}
	if cfg.Queue != nil {
		s.RegisterChecker("queue", queueChecker(cfg.Queue))
	}
	if cfg.Breakers != nil {
		s.RegisterChecker("circuit_breakers", breakerChecker(cfg.Breakers))
	}

	return s
}

func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Debug("Registered health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every checker concurrently. Any unhealthy check makes the
// service not ready; degraded checks keep it ready.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			result := checker(checkCtx)
			result.Name = name
			result.Duration = time.Since(start)
			result.Timestamp = start

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overall := StatusHealthy
	for _, result := range results {
		switch {
		case result.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case result.Status == StatusDegraded && overall != StatusUnhealthy:
			overall = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     overall != StatusUnhealthy,
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

func redisChecker(client redis.Cmdable, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis health check failed", zap.Error(err))
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("ping failed, rate limiting in memory: %v", err),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "connection ok"}
	}
}

func queueChecker(q Reporter) Checker {
	return func(context.Context) CheckResult {
		if !q.Healthy() {
			return CheckResult{Status: StatusUnhealthy, Message: "not connected"}
		}
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	}
}

func breakerChecker(m *circuitbreaker.Manager) Checker {
	return func(context.Context) CheckResult {
		var open []string
		for name, st := range m.Status() {
			if st.State != "closed" {
				open = append(open, name+"="+st.State)
			}
		}
		if len(open) == 0 {
			return CheckResult{Status: StatusHealthy, Message: "all closed"}
		}
		sort.Strings(open)
		return CheckResult{Status: StatusDegraded, Message: strings.Join(open, ", ")}
	}
}
