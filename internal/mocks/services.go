package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/ai-maga/internal/domain"
)

// MockTextGenerator is a mock implementation of TextGenerator interface
type MockTextGenerator struct {
	GenerateFunc func(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error)

	mu    sync.Mutex
	Calls [][]domain.Message
}

func (m *MockTextGenerator) Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, messages)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, opts)
	}
	return &domain.Generation{Content: "ok"}, nil
}

func (m *MockTextGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockAuthorizer is a mock implementation of Authorizer interface
type MockAuthorizer struct {
	CanExecuteFunc func(ctx context.Context, userID string, intent domain.Intent) (bool, error)
}

func (m *MockAuthorizer) CanExecute(ctx context.Context, userID string, intent domain.Intent) (bool, error) {
	if m.CanExecuteFunc != nil {
		return m.CanExecuteFunc(ctx, userID, intent)
	}
	return true, nil
}

// MockRateLimiter is a mock implementation of RateLimiter interface
type MockRateLimiter struct {
	CheckFunc func(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error)
}

func (m *MockRateLimiter) Check(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, userID, intent)
	}
	return domain.RateDecision{Allowed: true}, nil
}

// MockVisionService is a mock implementation of VisionService interface
type MockVisionService struct {
	TakeScreenshotFunc func(ctx context.Context, userID string) (*domain.Screenshot, error)
	RecognizeTextFunc  func(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error)
}

func (m *MockVisionService) TakeScreenshot(ctx context.Context, userID string) (*domain.Screenshot, error) {
	if m.TakeScreenshotFunc != nil {
		return m.TakeScreenshotFunc(ctx, userID)
	}
	return &domain.Screenshot{ID: "shot-1", MimeType: "image/png"}, nil
}

func (m *MockVisionService) RecognizeText(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
	if m.RecognizeTextFunc != nil {
		return m.RecognizeTextFunc(ctx, shot, lang)
	}
	return &domain.OCRResult{Content: "text"}, nil
}

// MockTranslator is a mock implementation of Translator interface
type MockTranslator struct {
	TranslateFunc func(ctx context.Context, text, targetLang, sourceLang string) (*domain.Translation, error)
}

func (m *MockTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (*domain.Translation, error) {
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, targetLang, sourceLang)
	}
	return &domain.Translation{SourceText: text, TranslatedText: text, TargetLang: targetLang}, nil
}

// MockSpeechSynthesizer is a mock implementation of SpeechSynthesizer interface
type MockSpeechSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text, lang string) (*domain.Speech, error)
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text, lang string) (*domain.Speech, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, lang)
	}
	return &domain.Speech{Format: "oggopus", Language: lang, Spoken: text}, nil
}

// MockReminderScheduler is a mock implementation of ReminderScheduler interface
type MockReminderScheduler struct {
	CreateReminderFunc func(ctx context.Context, req domain.ReminderRequest) (*domain.Reminder, error)
}

func (m *MockReminderScheduler) CreateReminder(ctx context.Context, req domain.ReminderRequest) (*domain.Reminder, error) {
	if m.CreateReminderFunc != nil {
		return m.CreateReminderFunc(ctx, req)
	}
	return &domain.Reminder{ID: "rem-1", UserID: req.UserID, Content: req.Text, When: req.When, Priority: req.Priority}, nil
}

// MockJobSearcher is a mock implementation of JobSearcher interface
type MockJobSearcher struct {
	SearchJobsFunc func(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error)
}

func (m *MockJobSearcher) SearchJobs(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
	if m.SearchJobsFunc != nil {
		return m.SearchJobsFunc(ctx, q)
	}
	return &domain.JobSearchResult{Query: q.Text}, nil
}

// MockDeviceAgent is a mock implementation of DeviceAgent interface
type MockDeviceAgent struct {
	TakeScreenshotFunc func(ctx context.Context, userID string) (*domain.Screenshot, error)
	ReadClipboardFunc  func(ctx context.Context, userID string) (*domain.ClipboardContent, error)
	OpenAppFunc        func(ctx context.Context, userID, app string) (*domain.AppLaunch, error)
}

func (m *MockDeviceAgent) TakeScreenshot(ctx context.Context, userID string) (*domain.Screenshot, error) {
	if m.TakeScreenshotFunc != nil {
		return m.TakeScreenshotFunc(ctx, userID)
	}
	return &domain.Screenshot{ID: "shot-1", MimeType: "image/png"}, nil
}

func (m *MockDeviceAgent) ReadClipboard(ctx context.Context, userID string) (*domain.ClipboardContent, error) {
	if m.ReadClipboardFunc != nil {
		return m.ReadClipboardFunc(ctx, userID)
	}
	return &domain.ClipboardContent{}, nil
}

func (m *MockDeviceAgent) OpenApp(ctx context.Context, userID, app string) (*domain.AppLaunch, error) {
	if m.OpenAppFunc != nil {
		return m.OpenAppFunc(ctx, userID, app)
	}
	return &domain.AppLaunch{App: app, Started: true}, nil
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	PublishFunc func(ctx context.Context, event domain.Event) error

	mu     sync.Mutex
	Events []domain.Event
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

func (m *MockEventPublisher) Published() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.Events))
	copy(out, m.Events)
	return out
}

// MockTokenValidator is a mock implementation of TokenValidator interface
type MockTokenValidator struct {
	ValidateTokenFunc func(ctx context.Context, token string) (*domain.User, error)
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	return &domain.User{ID: "user-1", Role: domain.UserRoleUser}, nil
}

// MockIntentDetector is a mock implementation of IntentDetector interface
type MockIntentDetector struct {
	DetectIntentFunc func(ctx context.Context, u domain.Utterance) domain.IntentResult
}

func (m *MockIntentDetector) DetectIntent(ctx context.Context, u domain.Utterance) domain.IntentResult {
	if m.DetectIntentFunc != nil {
		return m.DetectIntentFunc(ctx, u)
	}
	return domain.IntentResult{
		Intent:      domain.IntentFallback,
		Confidence:  0.5,
		Slots:       domain.Slots{domain.SlotQuery: u.Text},
		RawText:     u.Text,
		Explanation: domain.ExplanationFallback,
		Strategy:    domain.StrategyFallback,
	}
}

// MockIntentOrchestrator is a mock implementation of IntentOrchestrator interface
type MockIntentOrchestrator struct {
	OrchestrateIntentFunc func(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error)
	PlanStatusFunc        func(planID string) (domain.PlanSnapshot, error)
}

func (m *MockIntentOrchestrator) OrchestrateIntent(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error) {
	if m.OrchestrateIntentFunc != nil {
		return m.OrchestrateIntentFunc(ctx, intent, userID)
	}
	return &domain.PlanResult{Intent: intent.Intent, Status: domain.PlanCompleted, Results: map[string]any{}}, nil
}

func (m *MockIntentOrchestrator) PlanStatus(planID string) (domain.PlanSnapshot, error) {
	if m.PlanStatusFunc != nil {
		return m.PlanStatusFunc(planID)
	}
	return domain.PlanSnapshot{}, domain.ErrPlanNotFound
}
