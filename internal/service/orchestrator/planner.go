package orchestrator

import (
	"fmt"
	"time"

	"github.com/seu-repo/ai-maga/internal/domain"
)

// Step parameter keys.
const (
	paramUserID     = "user_id"
	paramPrompt     = "prompt"
	paramSystem     = "system"
	paramContext    = "context"
	paramMaxTokens  = "max_tokens"
	paramImage      = "image"
	paramText       = "text"
	paramLang       = "lang"
	paramTargetLang = "target_lang"
	paramSourceLang = "source_lang"
	paramWhen       = "when"
	paramDuration   = "duration"
	paramPriority   = "priority"
	paramQuery      = "query"
	paramLocation   = "location"
	paramSeniority  = "seniority"
	paramSalaryMin  = "salary_min"
	paramSalaryMax  = "salary_max"
	paramApp        = "app"
)

const (
	systemPrompt = "Ты - AI Мага, голосовой ассистент. Отвечай кратко и по делу."
	wakeGreeting = "Слушаю!"
)

// planInput is what a template may read when building step params.
type planInput struct {
	intent      domain.IntentResult
	userID      string
	defaultLang string
}

func (in planInput) slot(s domain.Slot) (string, bool) {
	return in.intent.Slots.String(s)
}

// query falls back to the raw utterance when no query slot was extracted.
func (in planInput) query() string {
	if q, ok := in.slot(domain.SlotQuery); ok {
		return q
	}
	return in.intent.RawText
}

func (in planInput) lang() string {
	if l, ok := in.slot(domain.SlotLang); ok {
		return l
	}
	return in.defaultLang
}

type stepTemplate struct {
	capability domain.Capability
	timeout    time.Duration
	required   bool
	params     func(in planInput) domain.StepParams
}

func (t stepTemplate) build(id string, in planInput) *domain.ActionStep {
	var params domain.StepParams
	if t.params != nil {
		params = t.params(in)
	}
	return domain.NewActionStep(id, t.capability, params, t.timeout, t.required)
}

func stepID(n int) string {
	return fmt.Sprintf("step_%d", n)
}

func ref(n int) domain.StepRef {
	return domain.StepRef{StepID: stepID(n)}
}

func textRef(n int) domain.StepRef {
	return domain.StepRef{StepID: stepID(n), AsText: true}
}

func llmParams(instruction string) func(planInput) domain.StepParams {
	return func(in planInput) domain.StepParams {
		prompt := in.query()
		if instruction != "" {
			prompt = instruction + "\n\n" + prompt
		}
		return domain.StepParams{paramSystem: systemPrompt, paramPrompt: prompt}
	}
}

func screenshotStep() stepTemplate {
	return stepTemplate{
		capability: domain.CapTakeScreenshot,
		timeout:    3 * time.Second,
		required:   true,
		params: func(in planInput) domain.StepParams {
			return domain.StepParams{paramUserID: in.userID}
		},
	}
}

func ocrStep() stepTemplate {
	return stepTemplate{
		capability: domain.CapOCRText,
		timeout:    5 * time.Second,
		required:   true,
		params: func(planInput) domain.StepParams {
			return domain.StepParams{paramImage: ref(1)}
		},
	}
}

func reminderStep() stepTemplate {
	return stepTemplate{
		capability: domain.CapCreateReminder,
		timeout:    2 * time.Second,
		required:   true,
		params: func(in planInput) domain.StepParams {
			p := domain.StepParams{paramUserID: in.userID, paramText: in.query()}
			if w, ok := in.slot(domain.SlotWhen); ok {
				p[paramWhen] = w
			}
			if d, ok := in.intent.Slots.Int(domain.SlotDuration); ok {
				p[paramDuration] = d
			}
			if pr, ok := in.intent.Slots.Int(domain.SlotPriority); ok {
				p[paramPriority] = pr
			}
			return p
		},
	}
}

func jobSearchStep() stepTemplate {
	return stepTemplate{
		capability: domain.CapSearchJobs,
		timeout:    10 * time.Second,
		required:   true,
		params: func(in planInput) domain.StepParams {
			p := domain.StepParams{paramQuery: in.query()}
			for _, s := range []domain.Slot{domain.SlotLocation, domain.SlotSeniority} {
				if v, ok := in.slot(s); ok {
					p[string(s)] = v
				}
			}
			for _, s := range []domain.Slot{domain.SlotSalaryMin, domain.SlotSalaryMax} {
				if v, ok := in.intent.Slots.Int(s); ok {
					p[string(s)] = v
				}
			}
			return p
		},
	}
}

func speechStep(required bool, text func(planInput) any) stepTemplate {
	return stepTemplate{
		capability: domain.CapSynthesizeSpeech,
		timeout:    5 * time.Second,
		required:   required,
		params: func(in planInput) domain.StepParams {
			return domain.StepParams{paramText: text(in), paramLang: in.lang()}
		},
	}
}

func generateStep(required bool, params func(planInput) domain.StepParams) stepTemplate {
	return stepTemplate{
		capability: domain.CapGenerateResponse,
		timeout:    10 * time.Second,
		required:   required,
		params:     params,
	}
}

// planTemplates maps every intent to its fixed step sequence. Intents with no
// steps are acknowledged without touching any capability.
var planTemplates = map[domain.Intent][]stepTemplate{
	domain.IntentChatAnswer:   {generateStep(true, llmParams(""))},
	domain.IntentComposeReply: {generateStep(true, llmParams("Составь вежливый ответ на сообщение:"))},
	domain.IntentSummarize:    {generateStep(true, llmParams("Кратко перескажи:"))},
	domain.IntentDailyDigest:  {generateStep(true, llmParams("Составь краткую сводку дня по запросу:"))},

	domain.IntentReadAloud: {speechStep(true, func(in planInput) any { return in.query() })},

	domain.IntentHHSearch: {jobSearchStep()},
	domain.IntentJobsDigest: {
		jobSearchStep(),
		generateStep(false, func(in planInput) domain.StepParams {
			return domain.StepParams{
				paramSystem:  systemPrompt,
				paramPrompt:  "Составь короткий дайджест по найденным вакансиям:",
				paramContext: textRef(1),
			}
		}),
	},

	domain.IntentOCRTranslate: {
		screenshotStep(),
		ocrStep(),
		{
			capability: domain.CapTranslateText,
			timeout:    5 * time.Second,
			required:   true,
			params: func(in planInput) domain.StepParams {
				return domain.StepParams{paramText: textRef(2), paramTargetLang: in.lang()}
			},
		},
	},
	domain.IntentDescribeScreen: {
		screenshotStep(),
		ocrStep(),
		generateStep(false, func(in planInput) domain.StepParams {
			return domain.StepParams{
				paramSystem:  systemPrompt,
				paramPrompt:  "Опиши, что видно на экране, по распознанному тексту:",
				paramContext: textRef(2),
			}
		}),
	},

	domain.IntentRemind:       {reminderStep()},
	domain.IntentScheduleTask: {reminderStep()},

	domain.IntentTakeScreenshot: {screenshotStep()},
	domain.IntentClipboardRead: {
		{
			capability: domain.CapReadClipboard,
			timeout:    2 * time.Second,
			required:   true,
			params: func(in planInput) domain.StepParams {
				return domain.StepParams{paramUserID: in.userID}
			},
		},
		speechStep(false, func(planInput) any { return textRef(1) }),
	},
	domain.IntentOpenApp: {
		{
			capability: domain.CapOpenApp,
			timeout:    3 * time.Second,
			required:   true,
			params: func(in planInput) domain.StepParams {
				p := domain.StepParams{paramUserID: in.userID}
				if app, ok := in.slot(domain.SlotQuery); ok {
					p[paramApp] = app
				}
				return p
			},
		},
	},

	domain.IntentWake: {speechStep(false, func(planInput) any { return wakeGreeting })},

	domain.IntentSleep:     nil,
	domain.IntentPause:     nil,
	domain.IntentResume:    nil,
	domain.IntentSetLang:   nil,
	domain.IntentSetVolume: nil,
}

// templateCapabilities lists every capability any template can emit, in a
// stable order.
func templateCapabilities() []domain.Capability {
	seen := make(map[domain.Capability]bool)
	var out []domain.Capability
	for _, intent := range domain.AllIntents() {
		for _, t := range planTemplates[intent] {
			if !seen[t.capability] {
				seen[t.capability] = true
				out = append(out, t.capability)
			}
		}
	}
	return out
}

// buildPlan synthesizes the steps for an intent and truncates them to maxSteps.
func buildPlan(id string, in planInput, budget time.Duration, maxSteps int) (*domain.ActionPlan, error) {
	plan := domain.NewActionPlan(id, in.intent.Intent, in.userID, budget)

	templates := planTemplates[in.intent.Intent]
	if maxSteps >= 0 && len(templates) > maxSteps {
		templates = templates[:maxSteps]
	}
	for i, t := range templates {
		if err := plan.AddStep(t.build(stepID(i+1), in)); err != nil {
			return nil, err
		}
	}
	return plan, nil
}
