package orchestrator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
)

type registryEntry struct {
	plan      *domain.ActionPlan
	expiresAt time.Time
}

// planRegistry keeps plans addressable by id for status lookups. Entries expire
// after the retention period and are swept by a background loop.
type planRegistry struct {
	data      map[string]registryEntry
	mu        sync.RWMutex
	retention time.Duration
	log       *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func newPlanRegistry(retention, cleanupInterval time.Duration, log *zap.Logger) *planRegistry {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	r := &planRegistry{
		data:      make(map[string]registryEntry),
		retention: retention,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go r.cleanupLoop(cleanupInterval)
	return r
}

func (r *planRegistry) put(plan *domain.ActionPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := registryEntry{plan: plan}
	if r.retention > 0 {
		entry.expiresAt = time.Now().Add(r.retention)
	}
	r.data[plan.ID] = entry
}

func (r *planRegistry) get(id string) (*domain.ActionPlan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.data[id]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		return nil, false
	}
	return entry.plan, true
}

func (r *planRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *planRegistry) close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *planRegistry) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup drops expired plans. A plan still executing is kept regardless of age.
func (r *planRegistry) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	expired := 0
	for id, entry := range r.data {
		if entry.expiresAt.IsZero() || !entry.expiresAt.Before(now) {
			continue
		}
		if !entry.plan.Status().Terminal() {
			continue
		}
		delete(r.data, id)
		expired++
	}

	if expired > 0 {
		r.log.Debug("Plan registry cleanup completed", zap.Int("expired_plans", expired))
	}
}
