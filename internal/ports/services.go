package ports

import (
	"context"

	"github.com/seu-repo/ai-maga/internal/domain"
)

// IntentDetector turns a raw utterance into a classified intent. It never
// fails: an undecidable utterance comes back as the fallback intent.
type IntentDetector interface {
	DetectIntent(ctx context.Context, u domain.Utterance) domain.IntentResult
}

// IntentOrchestrator plans and runs classified intents.
type IntentOrchestrator interface {
	OrchestrateIntent(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error)
	PlanStatus(planID string) (domain.PlanSnapshot, error)
}

// TextGenerator is the LLM collaborator used both for answering and for
// intent tie-breaking.
type TextGenerator interface {
	Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error)
}

// Authorizer decides whether a user may execute an intent.
type Authorizer interface {
	CanExecute(ctx context.Context, userID string, intent domain.Intent) (bool, error)
}

// RateLimiter records a call and reports whether it fits the user's budget.
type RateLimiter interface {
	Check(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error)
}

type ScreenCapturer interface {
	TakeScreenshot(ctx context.Context, userID string) (*domain.Screenshot, error)
}

// VisionService captures the screen and recognizes text in it.
type VisionService interface {
	ScreenCapturer
	RecognizeText(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error)
}

type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (*domain.Translation, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (*domain.Speech, error)
}

// ReminderScheduler hands reminders to the external scheduler.
type ReminderScheduler interface {
	CreateReminder(ctx context.Context, req domain.ReminderRequest) (*domain.Reminder, error)
}

type JobSearcher interface {
	SearchJobs(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error)
}

// DeviceAgent talks to the agent process running on the user's machine.
type DeviceAgent interface {
	ScreenCapturer
	ReadClipboard(ctx context.Context, userID string) (*domain.ClipboardContent, error)
	OpenApp(ctx context.Context, userID, app string) (*domain.AppLaunch, error)
}

// EventPublisher emits domain events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// TokenValidator resolves a bearer token to its user.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}
