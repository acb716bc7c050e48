package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

type bucket struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per user and intent group. It
// serves single-instance deployments and stands in when Redis is unreachable.
type LocalLimiter struct {
	policies Policies
	buckets  map[string]*bucket
	mu       sync.Mutex
	now      func() time.Time
	log      *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLocalLimiter starts a cleanup loop that runs every cleanupInterval until Close.
func NewLocalLimiter(policies Policies, cleanupInterval time.Duration, log *zap.Logger) *LocalLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	if policies == nil {
		policies = DefaultPolicies()
	}

	l := &LocalLimiter{
		policies: policies,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go l.cleanupLoop(cleanupInterval)

	log.Info("Local rate limiter initialized",
		zap.Int("policies", len(policies)),
		zap.Duration("cleanup_interval", cleanupInterval),
	)
	return l
}

// Check takes one token from the user's bucket for the intent's group.
func (l *LocalLimiter) Check(_ context.Context, userID string, intent domain.Intent) (domain.RateDecision, error) {
	group, pol := l.policies.lookup(intent)
	decision := l.take(key(userID, group), pol)
	if !decision.Allowed {
		telemetry.RateLimitDenialsTotal.WithLabelValues(string(intent), "memory").Inc()
		l.log.Info("Rate limit exceeded",
			zap.String("user_id", userID),
			zap.String("intent", string(intent)),
			zap.String("group", group),
			zap.Time("reset_at", decision.ResetAt),
		)
	}
	return decision, nil
}

func (l *LocalLimiter) take(k string, pol Policy) domain.RateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(pol.Window/time.Duration(pol.Requests)), pol.Requests),
			window:  pol.Window,
		}
		l.buckets[k] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return domain.RateDecision{ResetAt: now.Add(pol.Window)}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return domain.RateDecision{ResetAt: now.Add(delay)}
	}

	return domain.RateDecision{
		Allowed:   true,
		Remaining: max(0, int(b.limiter.TokensAt(now))),
		ResetAt:   now.Add(pol.Window),
	}
}

// Close stops the idle-bucket sweeper.
func (l *LocalLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	return nil
}

func (l *LocalLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops buckets untouched for a full window; they would be full again anyway.
func (l *LocalLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	idle := 0
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= b.window {
			delete(l.buckets, k)
			idle++
		}
	}

	if idle > 0 {
		l.log.Debug("Rate limiter cleanup completed", zap.Int("idle_buckets", idle))
	}
}
