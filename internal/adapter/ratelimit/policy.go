package ratelimit

import (
	"fmt"
	"time"

	"github.com/seu-repo/ai-maga/internal/domain"
)

// Policy allows Requests calls per Window for one user and intent group.
type Policy struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func (p Policy) valid() bool {
	return p.Requests > 0 && p.Window > 0
}

const defaultGroup = "default"

// Intents sharing a group share a budget.
var intentGroups = map[domain.Intent]string{
	domain.IntentChatAnswer:     "chat",
	domain.IntentComposeReply:   "chat",
	domain.IntentSummarize:      "chat",
	domain.IntentHHSearch:       "job_search",
	domain.IntentJobsDigest:     "job_search",
	domain.IntentRemind:         "reminder",
	domain.IntentScheduleTask:   "reminder",
	domain.IntentDailyDigest:    "reminder",
	domain.IntentOCRTranslate:   "vision",
	domain.IntentDescribeScreen: "vision",
	domain.IntentReadAloud:      "speech",
	domain.IntentClipboardRead:  "speech",
	domain.IntentWake:           "system",
	domain.IntentSleep:          "system",
	domain.IntentPause:          "system",
	domain.IntentResume:         "system",
	domain.IntentSetLang:        "system",
	domain.IntentSetVolume:      "system",
}

// Policies maps group names to limits. Missing groups use the "default" entry.
type Policies map[string]Policy

// DefaultPolicies returns the built-in limits per intent group.
func DefaultPolicies() Policies {
	return Policies{
		"chat":       {Requests: 60, Window: time.Minute},
		"job_search": {Requests: 20, Window: time.Hour},
		"reminder":   {Requests: 10, Window: time.Hour},
		"vision":     {Requests: 10, Window: time.Minute},
		"speech":     {Requests: 30, Window: time.Minute},
		"system":     {Requests: 10, Window: time.Minute},
		defaultGroup: {Requests: 10, Window: time.Minute},
	}
}

// Merge overlays configured policies on the defaults.
func (p Policies) Merge(overrides Policies) (Policies, error) {
	out := make(Policies, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		if !v.valid() {
			return nil, fmt.Errorf("rate limit policy %q: requests and window must be positive", k)
		}
		out[k] = v
	}
	return out, nil
}

func groupOf(intent domain.Intent) string {
	if g, ok := intentGroups[intent]; ok {
		return g
	}
	return defaultGroup
}

func (p Policies) lookup(intent domain.Intent) (string, Policy) {
	group := groupOf(intent)
	if pol, ok := p[group]; ok && pol.valid() {
		return group, pol
	}
	return group, p[defaultGroup]
}

func key(userID, group string) string {
	return fmt.Sprintf("ratelimit:%s:command:%s", userID, group)
}
