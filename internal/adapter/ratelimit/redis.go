package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

// slidingWindow trims the set to the window, then either reports the oldest
// entry (denied) or records the call (allowed). Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, count, oldest[2]}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return {1, count + 1, now}
`)

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis", zap.String("addr", opts.Addr))
	return client, nil
}

// RedisLimiter keeps a sliding window of call timestamps per user and intent
// group in a sorted set, so limits hold across instances. Redis failures fall
// back to the local limiter.
type RedisLimiter struct {
	client   redis.Scripter
	fallback *LocalLimiter
	policies Policies
	now      func() time.Time
	log      *zap.Logger
}

// NewRedisLimiter uses fallback when Redis errors. A nil fallback allows the call.
func NewRedisLimiter(client redis.Scripter, fallback *LocalLimiter, policies Policies, log *zap.Logger) *RedisLimiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &RedisLimiter{
		client:   client,
		fallback: fallback,
		policies: policies,
		now:      time.Now,
		log:      log,
	}
}

// Check records the call if it fits the window of the intent's group.
func (l *RedisLimiter) Check(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error) {
	group, pol := l.policies.lookup(intent)
	now := l.now()

	decision, err := l.eval(ctx, key(userID, group), pol, now)
	if err != nil {
		l.log.Warn("Redis rate limit check failed, using local limiter",
			zap.String("user_id", userID),
			zap.String("intent", string(intent)),
			zap.Error(err),
		)
		if l.fallback != nil {
			return l.fallback.Check(ctx, userID, intent)
		}
		return domain.RateDecision{Allowed: true, Remaining: pol.Requests, ResetAt: now.Add(pol.Window)}, nil
	}

	if !decision.Allowed {
		telemetry.RateLimitDenialsTotal.WithLabelValues(string(intent), "redis").Inc()
		l.log.Info("Rate limit exceeded",
			zap.String("user_id", userID),
			zap.String("intent", string(intent)),
			zap.String("group", group),
			zap.Time("reset_at", decision.ResetAt),
		)
	}
	return decision, nil
}

func (l *RedisLimiter) eval(ctx context.Context, k string, pol Policy, now time.Time) (domain.RateDecision, error) {
	nowMS := now.UnixMilli()
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()

	raw, err := slidingWindow.Run(ctx, l.client, []string{k},
		nowMS, pol.Window.Milliseconds(), pol.Requests, member,
	).Slice()
	if err != nil {
		return domain.RateDecision{}, err
	}
	if len(raw) != 3 {
		return domain.RateDecision{}, fmt.Errorf("unexpected script reply: %v", raw)
	}

	allowed, err := toInt64(raw[0])
	if err != nil {
		return domain.RateDecision{}, err
	}
	count, err := toInt64(raw[1])
	if err != nil {
		return domain.RateDecision{}, err
	}
	anchor, err := toInt64(raw[2])
	if err != nil {
		return domain.RateDecision{}, err
	}

	return domain.RateDecision{
		Allowed:   allowed == 1,
		Remaining: max(0, pol.Requests-int(count)),
		ResetAt:   time.UnixMilli(anchor).Add(pol.Window),
	}, nil
}

// Sorted set scores come back as strings, script numbers as integers.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parse script reply %q: %w", n, err)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("unexpected script reply type %T", v)
}
