package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Intent is a classified user goal.
type Intent string

const (
	// System
	IntentWake      Intent = "wake"
	IntentSleep     Intent = "sleep"
	IntentPause     Intent = "pause"
	IntentResume    Intent = "resume"
	IntentSetLang   Intent = "set_lang"
	IntentSetVolume Intent = "set_volume"

	// Conversation
	IntentChatAnswer Intent = "chat_answer"
	IntentSummarize  Intent = "summarize"
	IntentReadAloud  Intent = "read_aloud"

	// Jobs
	IntentHHSearch     Intent = "hh_search"
	IntentJobsDigest   Intent = "jobs_digest"
	IntentComposeReply Intent = "compose_reply"

	// Vision
	IntentOCRTranslate   Intent = "ocr_translate"
	IntentDescribeScreen Intent = "describe_screen"

	// Routine
	IntentRemind       Intent = "remind"
	IntentScheduleTask Intent = "schedule_task"
	IntentDailyDigest  Intent = "daily_digest"

	// Utilities
	IntentOpenApp        Intent = "open_app"
	IntentTakeScreenshot Intent = "take_screenshot"
	IntentClipboardRead  Intent = "clipboard_read"
)

// IntentFallback is returned whenever nothing else clears the acceptance threshold.
const IntentFallback = IntentChatAnswer

var allIntents = []Intent{
	IntentWake, IntentSleep, IntentPause, IntentResume, IntentSetLang, IntentSetVolume,
	IntentChatAnswer, IntentSummarize, IntentReadAloud,
	IntentHHSearch, IntentJobsDigest, IntentComposeReply,
	IntentOCRTranslate, IntentDescribeScreen,
	IntentRemind, IntentScheduleTask, IntentDailyDigest,
	IntentOpenApp, IntentTakeScreenshot, IntentClipboardRead,
}

// AllIntents returns every intent in declaration order.
func AllIntents() []Intent {
	out := make([]Intent, len(allIntents))
	copy(out, allIntents)
	return out
}

// ParseIntent recognises only the closed set of intent names.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, i := range allIntents {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// Slot names a parameter extracted from an utterance.
type Slot string

const (
	SlotQuery     Slot = "query"
	SlotLang      Slot = "lang"
	SlotWhen      Slot = "when"
	SlotLocation  Slot = "location"
	SlotSeniority Slot = "seniority"
	SlotSalaryMin Slot = "salary_min"
	SlotSalaryMax Slot = "salary_max"
	SlotChannel   Slot = "channel"
	SlotDuration  Slot = "duration" // minutes
	SlotPriority  Slot = "priority" // 1 (highest) .. 5
)

// Slots maps a slot kind to its extracted value. String kinds hold string,
// numeric kinds hold int (or float64 after a JSON round trip).
type Slots map[Slot]any

// String returns the value of k if it is a non-empty string.
func (s Slots) String(k Slot) (string, bool) {
	v, ok := s[k]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok && str != ""
}

// Int returns the value of k as an int, accepting JSON numbers and numeric strings.
func (s Slots) Int(k Slot) (int, bool) {
	switch v := s[k].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// Clone returns a shallow copy.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IntentPattern is a declarative classification rule. Matchers are regular
// expressions evaluated against lowercased, trimmed text.
type IntentPattern struct {
	Intent          Intent
	Matchers        []string
	RequiredSlots   []Slot
	OptionalSlots   []Slot
	ConfidenceBoost float64
}

type UtteranceSource string

const (
	SourceVoice    UtteranceSource = "voice"
	SourceTelegram UtteranceSource = "telegram"
	SourceHTTP     UtteranceSource = "http"
	SourceCLI      UtteranceSource = "cli"
)

// Utterance is one piece of user input with its origin.
type Utterance struct {
	Text      string          `json:"text"`
	Source    UtteranceSource `json:"source"`
	Language  string          `json:"language,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user_id,omitempty"`
}

// Strategy records which stage produced an IntentResult.
type Strategy string

const (
	StrategyRule     Strategy = "rule"
	StrategyLLM      Strategy = "llm"
	StrategyFallback Strategy = "fallback"
)

const (
	ExplanationRuleBased = "rule-based"
	ExplanationFallback  = "fallback"
)

// IntentResult is the classifier output. Confidence is always in [0, 1].
type IntentResult struct {
	Intent      Intent   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Slots       Slots    `json:"slots"`
	RawText     string   `json:"raw_text"`
	Explanation string   `json:"explanation,omitempty"`
	Strategy    Strategy `json:"strategy,omitempty"`
}

// Committed reports whether the result is a decision the caller may act on
// without asking for clarification.
func (r IntentResult) Committed(threshold float64) bool {
	return r.Strategy != StrategyFallback && r.Confidence >= threshold
}
