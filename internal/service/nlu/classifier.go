package nlu

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
	"github.com/seu-repo/ai-maga/internal/ports"
)

// maxInputRunes bounds the text fed to the matchers.
const maxInputRunes = 1000

const fallbackConfidence = 0.5

// Config holds the commit threshold and the tie-breaker timeout.
type Config struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	LLMTimeout          time.Duration `mapstructure:"llm_timeout"`
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.5
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 10 * time.Second
	}
	return c
}

// Classifier maps utterances to intents. Patterns are compiled once at
// construction and only read afterwards, so a Classifier is safe for
// concurrent use.
type Classifier struct {
	cfg      Config
	patterns []compiledPattern
	llm      ports.TextGenerator
	log      *zap.Logger
}

type candidate struct {
	intent     domain.Intent
	confidence float64
}

// NewClassifier compiles patterns. llm may be nil, in which case ambiguous
// utterances go straight to the fallback.
func NewClassifier(cfg Config, patterns []domain.IntentPattern, llm ports.TextGenerator, log *zap.Logger) (*Classifier, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, fmt.Errorf("compile intent patterns: %w", err)
	}
	return &Classifier{
		cfg:      cfg.withDefaults(),
		patterns: compiled,
		llm:      llm,
		log:      log,
	}, nil
}

// Threshold is the confidence at or above which a result is committed.
func (c *Classifier) Threshold() float64 {
	return c.cfg.ConfidenceThreshold
}

// DetectIntent never fails; anything it cannot decide becomes the fallback intent.
func (c *Classifier) DetectIntent(ctx context.Context, u domain.Utterance) domain.IntentResult {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "nlu.DetectIntent")
	defer span.End()

	res := c.detect(ctx, u.Text)

	span.SetAttributes(
		attribute.String("intent", string(res.Intent)),
		attribute.String("strategy", string(res.Strategy)),
		attribute.Float64("confidence", res.Confidence),
	)
	telemetry.IntentsClassifiedTotal.WithLabelValues(string(res.Intent), string(res.Strategy)).Inc()
	telemetry.ClassificationLatency.Observe(time.Since(start).Seconds())

	c.log.Debug("Intent detected",
		zap.String("intent", string(res.Intent)),
		zap.String("strategy", string(res.Strategy)),
		zap.Float64("confidence", res.Confidence),
		zap.String("source", string(u.Source)),
		zap.Duration("took", time.Since(start)),
	)
	return res
}

// detect scores and extracts slots from the same text: the trimmed input cut
// to maxInputRunes. RawText always carries the input as received.
func (c *Classifier) detect(ctx context.Context, raw string) domain.IntentResult {
	text := boundInput(raw)
	normalized := []rune(strings.ToLower(text))

	candidates := c.candidates(normalized)
	if len(candidates) == 0 {
		return fallback(raw, text)
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.confidence > best.confidence {
			best = cand
		}
	}

	if best.confidence >= c.cfg.ConfidenceThreshold {
		return domain.IntentResult{
			Intent:      best.intent,
			Confidence:  best.confidence,
			Slots:       extractSlots(text, best.intent),
			RawText:     raw,
			Explanation: domain.ExplanationRuleBased,
			Strategy:    domain.StrategyRule,
		}
	}

	if res := c.tieBreak(ctx, text, candidates); res != nil && res.Confidence >= c.cfg.ConfidenceThreshold {
		res.RawText = raw
		return *res
	}

	return fallback(raw, text)
}

func boundInput(raw string) string {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) <= maxInputRunes {
		return text
	}
	return string([]rune(text)[:maxInputRunes])
}

// candidates scores every pattern in declaration order and keeps the ones
// that matched.
func (c *Classifier) candidates(text []rune) []candidate {
	var out []candidate
	for _, p := range c.patterns {
		if conf := p.score(text); conf > 0 {
			out = append(out, candidate{intent: p.pattern.Intent, confidence: conf})
		}
	}
	return out
}

// ExtractSlots runs slot extraction for an intent chosen elsewhere, e.g. an
// intent supplied directly by an API caller.
func ExtractSlots(text string, intent domain.Intent) domain.Slots {
	return extractSlots(text, intent)
}

func fallback(raw, text string) domain.IntentResult {
	return domain.IntentResult{
		Intent:      domain.IntentFallback,
		Confidence:  fallbackConfidence,
		Slots:       domain.Slots{domain.SlotQuery: text},
		RawText:     raw,
		Explanation: domain.ExplanationFallback,
		Strategy:    domain.StrategyFallback,
	}
}
