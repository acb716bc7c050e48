package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

const (
	tieBreakerCandidates  = 3
	tieBreakerTemperature = 0.1
	tieBreakerMaxTokens   = 150
	defaultLLMConfidence  = 0.5
	defaultLLMExplanation = "llm"
)

const tieBreakerPrompt = `Ты - AI Мага, эксперт по распознаванию намерений пользователя.

Проанализируй текст пользователя и выбери наиболее подходящее намерение из списка кандидатов.

Текст пользователя: "%s"

Кандидаты (intent, confidence):
%s

Верни JSON в формате:
{
  "intent": "chosen_intent",
  "confidence": 0.XX,
  "explanation": "краткое объяснение выбора"
}

Если ни один кандидат не подходит (>0.3 confidence), верни fallback "chat_answer".`

var errNoJSON = errors.New("no JSON object in response")

type tieBreakerReply struct {
	Intent      string   `json:"intent"`
	Confidence  *float64 `json:"confidence"`
	Explanation string   `json:"explanation"`
}

// tieBreak asks the LLM to pick among the strongest rule candidates. Every
// failure is logged and reported as no result.
func (c *Classifier) tieBreak(ctx context.Context, raw string, candidates []candidate) *domain.IntentResult {
	if c.llm == nil {
		return nil
	}

	top := make([]candidate, len(candidates))
	copy(top, candidates)
	sort.SliceStable(top, func(i, j int) bool { return top[i].confidence > top[j].confidence })
	if len(top) > tieBreakerCandidates {
		top = top[:tieBreakerCandidates]
	}

	listed := make([]string, 0, len(top))
	for _, cand := range top {
		listed = append(listed, fmt.Sprintf("%s (%.2f)", cand.intent, cand.confidence))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()

	gen, err := c.llm.Generate(ctx, []domain.Message{{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf(tieBreakerPrompt, raw, strings.Join(listed, ", ")),
	}}, domain.GenerateOptions{
		Temperature: tieBreakerTemperature,
		MaxTokens:   tieBreakerMaxTokens,
	})
	if err != nil {
		telemetry.TieBreakerCallsTotal.WithLabelValues("error").Inc()
		c.log.Warn("LLM tie-breaker failed", zap.Error(err))
		return nil
	}

	res, err := parseTieBreakerReply(gen.Text(), raw)
	if err != nil {
		telemetry.TieBreakerCallsTotal.WithLabelValues("unparsed").Inc()
		c.log.Warn("LLM tie-breaker reply rejected", zap.Error(err))
		return nil
	}

	telemetry.TieBreakerCallsTotal.WithLabelValues("ok").Inc()
	return res
}

func parseTieBreakerReply(text, raw string) (*domain.IntentResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSON
	}

	var reply tieBreakerReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("decode tie-breaker reply: %w", err)
	}

	intent, ok := domain.ParseIntent(reply.Intent)
	if !ok {
		return nil, fmt.Errorf("unknown intent %q", reply.Intent)
	}

	confidence := defaultLLMConfidence
	if reply.Confidence != nil {
		confidence = max(0, min(1, *reply.Confidence))
	}
	explanation := reply.Explanation
	if explanation == "" {
		explanation = defaultLLMExplanation
	}

	return &domain.IntentResult{
		Intent:      intent,
		Confidence:  confidence,
		Slots:       extractSlots(raw, intent),
		RawText:     raw,
		Explanation: explanation,
		Strategy:    domain.StrategyLLM,
	}, nil
}
