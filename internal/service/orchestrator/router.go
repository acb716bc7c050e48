package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/ports"
)

// CapabilityFunc executes one (service, action) pair with resolved step params.
type CapabilityFunc func(ctx context.Context, params domain.StepParams) (any, error)

// Capabilities groups the collaborators steps are dispatched to. Any field may
// be nil; NewRouter then rejects the table if a plan template needs it.
type Capabilities struct {
	LLM        ports.TextGenerator
	Vision     ports.VisionService
	Translator ports.Translator
	Speech     ports.SpeechSynthesizer
	Scheduler  ports.ReminderScheduler
	Jobs       ports.JobSearcher
	Device     ports.DeviceAgent
}

var errNoResult = errors.New("capability returned no result")

// Router is a static capability table, read-only after construction.
type Router struct {
	table map[domain.Capability]CapabilityFunc
}

// NewRouter validates that every capability a plan template can produce has
// a function.
func NewRouter(table map[domain.Capability]CapabilityFunc) (*Router, error) {
	for _, c := range templateCapabilities() {
		if table[c] == nil {
			return nil, fmt.Errorf("capability table: %w", &domain.RoutingError{Service: c.Service, Action: c.Action})
		}
	}
	own := make(map[domain.Capability]CapabilityFunc, len(table))
	for k, v := range table {
		own[k] = v
	}
	return &Router{table: own}, nil
}

// Resolve returns the function bound to c or a *domain.RoutingError.
func (r *Router) Resolve(c domain.Capability) (CapabilityFunc, error) {
	fn, ok := r.table[c]
	if !ok || fn == nil {
		return nil, &domain.RoutingError{Service: c.Service, Action: c.Action}
	}
	return fn, nil
}

// CapabilityTable binds the ports in caps to their (service, action) pairs.
func CapabilityTable(caps Capabilities) map[domain.Capability]CapabilityFunc {
	table := make(map[domain.Capability]CapabilityFunc)

	if caps.LLM != nil {
		table[domain.CapGenerateResponse] = generateResponse(caps.LLM)
	}
	if caps.Vision != nil {
		table[domain.CapTakeScreenshot] = func(ctx context.Context, p domain.StepParams) (any, error) {
			return nonNil(caps.Vision.TakeScreenshot(ctx, p.String(paramUserID)))
		}
		table[domain.CapOCRText] = func(ctx context.Context, p domain.StepParams) (any, error) {
			shot, ok := p[paramImage].(*domain.Screenshot)
			if !ok || shot == nil {
				return nil, fmt.Errorf("ocr: param %q is %T, want screenshot", paramImage, p[paramImage])
			}
			return nonNil(caps.Vision.RecognizeText(ctx, shot, p.String(paramLang)))
		}
	}
	if caps.Translator != nil {
		table[domain.CapTranslateText] = func(ctx context.Context, p domain.StepParams) (any, error) {
			text := p.String(paramText)
			if text == "" {
				return nil, errors.New("translate: empty text")
			}
			return nonNil(caps.Translator.Translate(ctx, text, p.String(paramTargetLang), p.String(paramSourceLang)))
		}
	}
	if caps.Speech != nil {
		table[domain.CapSynthesizeSpeech] = func(ctx context.Context, p domain.StepParams) (any, error) {
			text := p.String(paramText)
			if text == "" {
				return nil, errors.New("tts: empty text")
			}
			return nonNil(caps.Speech.Synthesize(ctx, text, p.String(paramLang)))
		}
	}
	if caps.Scheduler != nil {
		table[domain.CapCreateReminder] = func(ctx context.Context, p domain.StepParams) (any, error) {
			req := domain.ReminderRequest{
				UserID: p.String(paramUserID),
				Text:   p.String(paramText),
				When:   p.String(paramWhen),
			}
			if req.Text == "" {
				return nil, errors.New("reminder: empty text")
			}
			if m, ok := p.Int(paramDuration); ok {
				req.Duration = time.Duration(m) * time.Minute
			}
			if pr, ok := p.Int(paramPriority); ok {
				req.Priority = pr
			}
			return nonNil(caps.Scheduler.CreateReminder(ctx, req))
		}
	}
	if caps.Jobs != nil {
		table[domain.CapSearchJobs] = func(ctx context.Context, p domain.StepParams) (any, error) {
			q := domain.JobQuery{
				Text:      p.String(paramQuery),
				Location:  p.String(paramLocation),
				Seniority: p.String(paramSeniority),
			}
			q.SalaryMin, _ = p.Int(paramSalaryMin)
			q.SalaryMax, _ = p.Int(paramSalaryMax)
			return nonNil(caps.Jobs.SearchJobs(ctx, q))
		}
	}
	if caps.Device != nil {
		table[domain.CapReadClipboard] = func(ctx context.Context, p domain.StepParams) (any, error) {
			return nonNil(caps.Device.ReadClipboard(ctx, p.String(paramUserID)))
		}
		table[domain.CapOpenApp] = func(ctx context.Context, p domain.StepParams) (any, error) {
			app := p.String(paramApp)
			if app == "" {
				return nil, errors.New("open app: no application name")
			}
			return nonNil(caps.Device.OpenApp(ctx, p.String(paramUserID), app))
		}
	}

	return table
}

func generateResponse(llm ports.TextGenerator) CapabilityFunc {
	return func(ctx context.Context, p domain.StepParams) (any, error) {
		prompt := p.String(paramPrompt)
		if extra := p.String(paramContext); extra != "" {
			prompt += "\n\n" + extra
		}
		if prompt == "" {
			return nil, errors.New("llm: empty prompt")
		}

		var msgs []domain.Message
		if sys := p.String(paramSystem); sys != "" {
			msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: sys})
		}
		msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: prompt})

		opts := domain.GenerateOptions{Temperature: 0.6, MaxTokens: 2000}
		if n, ok := p.Int(paramMaxTokens); ok {
			opts.MaxTokens = n
		}
		return nonNil(llm.Generate(ctx, msgs, opts))
	}
}

// nonNil turns a (nil, nil) capability reply into an error so a completed
// step always carries a result.
func nonNil[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errNoResult
	}
	return v, nil
}
