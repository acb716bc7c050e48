package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type testDeps struct {
	llm        *mocks.MockTextGenerator
	vision     *mocks.MockVisionService
	translator *mocks.MockTranslator
	speech     *mocks.MockSpeechSynthesizer
	scheduler  *mocks.MockReminderScheduler
	jobs       *mocks.MockJobSearcher
	device     *mocks.MockDeviceAgent
	authz      *mocks.MockAuthorizer
	limiter    *mocks.MockRateLimiter
	events     *mocks.MockEventPublisher
}

func newTestDeps() *testDeps {
	return &testDeps{
		llm:        &mocks.MockTextGenerator{},
		vision:     &mocks.MockVisionService{},
		translator: &mocks.MockTranslator{},
		speech:     &mocks.MockSpeechSynthesizer{},
		scheduler:  &mocks.MockReminderScheduler{},
		jobs:       &mocks.MockJobSearcher{},
		device:     &mocks.MockDeviceAgent{},
		authz:      &mocks.MockAuthorizer{},
		limiter:    &mocks.MockRateLimiter{},
		events:     &mocks.MockEventPublisher{},
	}
}

func (d *testDeps) capabilities() Capabilities {
	return Capabilities{
		LLM:        d.llm,
		Vision:     d.vision,
		Translator: d.translator,
		Speech:     d.speech,
		Scheduler:  d.scheduler,
		Jobs:       d.jobs,
		Device:     d.device,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, d *testDeps) *Orchestrator {
	t.Helper()
	router, err := NewRouter(CapabilityTable(d.capabilities()))
	require.NoError(t, err)

	o := New(cfg, router, d.authz, d.limiter, d.events, newTestLogger())
	t.Cleanup(o.Close)
	return o
}

func intentResult(intent domain.Intent, raw string, slots domain.Slots) domain.IntentResult {
	if slots == nil {
		slots = domain.Slots{}
	}
	return domain.IntentResult{
		Intent:      intent,
		Confidence:  0.9,
		Slots:       slots,
		RawText:     raw,
		Explanation: domain.ExplanationRuleBased,
		Strategy:    domain.StrategyRule,
	}
}

func TestOrchestrateIntent_JobSearch(t *testing.T) {
	// Arrange
	d := newTestDeps()
	var got domain.JobQuery
	d.jobs.SearchJobsFunc = func(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
		got = q
		return &domain.JobSearchResult{
			Query: q.Text,
			Found: 2,
			Vacancies: []domain.Vacancy{
				{ID: "1", Name: "Python Developer", Employer: "Яндекс"},
				{ID: "2", Name: "Backend Engineer"},
			},
		}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	// Act
	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentHHSearch,
		"найди вакансии Python в Москве от 100000 рублей",
		domain.Slots{
			domain.SlotQuery:     "Python",
			domain.SlotLocation:  "Москве",
			domain.SlotSalaryMin: 100000,
		}), "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.Zero(t, res.StepsFailed)
	assert.Contains(t, res.Results, "step_1")
	assert.Equal(t, "Найдено вакансий: 2.\nPython Developer (Яндекс)\nBackend Engineer", res.Response)
	assert.NoError(t, res.Err())

	assert.Equal(t, domain.JobQuery{Text: "Python", Location: "Москве", SalaryMin: 100000}, got)
}

func TestOrchestrateIntent_RequiredStepFailure(t *testing.T) {
	d := newTestDeps()
	d.jobs.SearchJobsFunc = func(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
		return nil, errors.New("hh.ru unavailable")
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentHHSearch, "найди работу", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, res.Status)
	assert.Equal(t, 1, res.StepsFailed)
	assert.Equal(t, 0, res.StepsCompleted)
	assert.Empty(t, res.Results)
	assert.Equal(t, responseFailed, res.Response)
	assert.ErrorIs(t, res.Err(), domain.ErrPlanFailed)
}

func TestOrchestrateIntent_BudgetExpiresMidStep(t *testing.T) {
	// Arrange
	d := newTestDeps()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var translated atomic.Bool
	d.vision.RecognizeTextFunc = func(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
		<-release
		return &domain.OCRResult{Content: "late"}, nil
	}
	d.translator.TranslateFunc = func(ctx context.Context, text, target, source string) (*domain.Translation, error) {
		translated.Store(true)
		return &domain.Translation{TranslatedText: text}, nil
	}
	o := newTestOrchestrator(t, Config{TimeBudget: 100 * time.Millisecond}, d)

	// Act
	start := time.Now()
	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOCRTranslate, "переведи текст на экране", nil), "user-1")

	// Assert
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.PlanTimeout, res.Status)
	assert.ErrorIs(t, res.Err(), domain.ErrPlanTimeout)
	assert.Len(t, res.Results, 1)
	assert.Contains(t, res.Results, "step_1")
	assert.Equal(t, responseTimeout, res.Response)
	assert.False(t, translated.Load())

	snap, err := o.PlanStatus(res.PlanID)
	require.NoError(t, err)
	require.Len(t, snap.Steps, 3)
	assert.Equal(t, domain.StepCompleted, snap.Steps[0].Status)
	assert.Equal(t, domain.StepRunning, snap.Steps[1].Status)
	assert.Equal(t, domain.StepPending, snap.Steps[2].Status)
}

func TestExecute_BudgetSpentBetweenSteps(t *testing.T) {
	// Arrange: step_1 returns well before its own timer, but it moves the plan
	// clock past the budget, so the loop has to stop before step_2.
	budget := time.Minute
	plan := domain.NewActionPlan("plan-between", domain.IntentOCRTranslate, "user-1", budget)
	require.NoError(t, plan.AddStep(domain.NewActionStep("step_1", domain.CapTakeScreenshot, nil, time.Second, true)))
	require.NoError(t, plan.AddStep(domain.NewActionStep("step_2", domain.CapOCRText, nil, time.Second, true)))
	require.NoError(t, plan.SetStatus(domain.PlanExecuting))

	var ocrCalled atomic.Bool
	router := &Router{table: map[domain.Capability]CapabilityFunc{
		domain.CapTakeScreenshot: func(ctx context.Context, params domain.StepParams) (any, error) {
			plan.CreatedAt = plan.CreatedAt.Add(-2 * budget)
			return &domain.Screenshot{}, nil
		},
		domain.CapOCRText: func(ctx context.Context, params domain.StepParams) (any, error) {
			ocrCalled.Store(true)
			return &domain.OCRResult{}, nil
		},
	}}
	o := New(Config{}, router, nil, nil, nil, newTestLogger())
	t.Cleanup(o.Close)

	// Act
	err := o.execute(context.Background(), plan)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTimeout, plan.Status())
	assert.False(t, ocrCalled.Load())

	snap := plan.Snapshot()
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, domain.StepCompleted, snap.Steps[0].Status)
	assert.Equal(t, domain.StepPending, snap.Steps[1].Status)
	assert.Contains(t, plan.Results(), "step_1")
}

func TestExecute_BudgetAlreadySpent(t *testing.T) {
	var called atomic.Bool
	router := &Router{table: map[domain.Capability]CapabilityFunc{
		domain.CapGenerateResponse: func(ctx context.Context, params domain.StepParams) (any, error) {
			called.Store(true)
			return "hi", nil
		},
	}}
	plan := domain.NewActionPlan("plan-late", domain.IntentChatAnswer, "user-1", time.Millisecond)
	require.NoError(t, plan.AddStep(domain.NewActionStep("step_1", domain.CapGenerateResponse, nil, time.Second, true)))
	require.NoError(t, plan.SetStatus(domain.PlanExecuting))
	plan.CreatedAt = plan.CreatedAt.Add(-time.Second)
	o := New(Config{}, router, nil, nil, nil, newTestLogger())
	t.Cleanup(o.Close)

	require.NoError(t, o.execute(context.Background(), plan))

	assert.Equal(t, domain.PlanTimeout, plan.Status())
	assert.False(t, called.Load())
	assert.Equal(t, domain.StepPending, plan.Snapshot().Steps[0].Status)
}

func TestOrchestrateIntent_StepCap(t *testing.T) {
	d := newTestDeps()
	var translated atomic.Bool
	d.translator.TranslateFunc = func(ctx context.Context, text, target, source string) (*domain.Translation, error) {
		translated.Store(true)
		return &domain.Translation{TranslatedText: text}, nil
	}
	d.vision.RecognizeTextFunc = func(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
		return &domain.OCRResult{Content: "Hello"}, nil
	}
	o := newTestOrchestrator(t, Config{MaxSteps: 2}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOCRTranslate, "переведи экран", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Equal(t, 2, res.StepsCompleted)
	assert.False(t, translated.Load())
	assert.Equal(t, "Hello", res.Response)

	snap, err := o.PlanStatus(res.PlanID)
	require.NoError(t, err)
	assert.Len(t, snap.Steps, 2)
}

func TestOrchestrateIntent_RequiredFailureLeavesRestPending(t *testing.T) {
	d := newTestDeps()
	var ocrCalled atomic.Bool
	d.vision.TakeScreenshotFunc = func(ctx context.Context, userID string) (*domain.Screenshot, error) {
		return nil, errors.New("agent offline")
	}
	d.vision.RecognizeTextFunc = func(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
		ocrCalled.Store(true)
		return &domain.OCRResult{}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOCRTranslate, "переведи экран", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, res.Status)
	assert.False(t, ocrCalled.Load())

	snap, err := o.PlanStatus(res.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepFailed, snap.Steps[0].Status)
	assert.Contains(t, snap.Steps[0].Error, "agent offline")
	assert.Equal(t, domain.StepPending, snap.Steps[1].Status)
	assert.Equal(t, domain.StepPending, snap.Steps[2].Status)
}

func TestOrchestrateIntent_TranslateChain(t *testing.T) {
	d := newTestDeps()
	d.vision.RecognizeTextFunc = func(ctx context.Context, shot *domain.Screenshot, lang string) (*domain.OCRResult, error) {
		if assert.NotNil(t, shot) {
			assert.Equal(t, "shot-1", shot.ID)
		}
		return &domain.OCRResult{Content: "Привет, мир"}, nil
	}
	var gotText, gotTarget string
	d.translator.TranslateFunc = func(ctx context.Context, text, target, source string) (*domain.Translation, error) {
		gotText, gotTarget = text, target
		return &domain.Translation{SourceText: text, TranslatedText: "Hallo, Welt", TargetLang: target}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOCRTranslate,
		"переведи текст на экране на немецкий", domain.Slots{domain.SlotLang: "de"}), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Equal(t, 3, res.StepsCompleted)
	assert.Equal(t, "Привет, мир", gotText)
	assert.Equal(t, "de", gotTarget)
	assert.Equal(t, "Hallo, Welt", res.Response)
}

func TestOrchestrateIntent_DefaultTranslateLang(t *testing.T) {
	d := newTestDeps()
	var gotTarget string
	d.translator.TranslateFunc = func(ctx context.Context, text, target, source string) (*domain.Translation, error) {
		gotTarget = target
		return &domain.Translation{TranslatedText: "x"}, nil
	}
	o := newTestOrchestrator(t, Config{DefaultTranslateLang: "fr"}, d)

	_, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOCRTranslate, "переведи экран", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "fr", gotTarget)
}

func TestOrchestrateIntent_OptionalFailureContinues(t *testing.T) {
	d := newTestDeps()
	d.jobs.SearchJobsFunc = func(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
		return &domain.JobSearchResult{Found: 1, Vacancies: []domain.Vacancy{{Name: "Go Developer"}}}, nil
	}
	d.llm.GenerateFunc = func(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error) {
		return nil, errors.New("quota exceeded")
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentJobsDigest, "дайджест вакансий", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.Equal(t, 1, res.StepsFailed)
	assert.Equal(t, "Найдено вакансий: 1.\nGo Developer", res.Response)
}

func TestOrchestrateIntent_DigestFeedsSearchIntoLLM(t *testing.T) {
	d := newTestDeps()
	d.jobs.SearchJobsFunc = func(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
		return &domain.JobSearchResult{Found: 1, Vacancies: []domain.Vacancy{{Name: "Go Developer"}}}, nil
	}
	d.llm.GenerateFunc = func(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error) {
		return &domain.Generation{Content: "Одна вакансия: Go Developer"}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentJobsDigest, "дайджест вакансий", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "Одна вакансия: Go Developer", res.Response)
	require.Equal(t, 1, d.llm.CallCount())
	last := d.llm.Calls[0][len(d.llm.Calls[0])-1]
	assert.Contains(t, last.Content, "Go Developer")
}

func TestOrchestrateIntent_ReminderParams(t *testing.T) {
	d := newTestDeps()
	var got domain.ReminderRequest
	d.scheduler.CreateReminderFunc = func(ctx context.Context, req domain.ReminderRequest) (*domain.Reminder, error) {
		got = req
		return &domain.Reminder{ID: "r1", Content: req.Text, When: req.When}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentRemind,
		"напомни выключить плиту через 15 минут, срочно",
		domain.Slots{
			domain.SlotQuery:    "выключить плиту",
			domain.SlotDuration: 15,
			domain.SlotPriority: 1,
		}), "user-7")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Equal(t, domain.ReminderRequest{
		UserID:   "user-7",
		Text:     "выключить плиту",
		Duration: 15 * time.Minute,
		Priority: 1,
	}, got)
	assert.Equal(t, "Напоминание создано: выключить плиту", res.Response)
}

func TestOrchestrateIntent_AcknowledgedIntents(t *testing.T) {
	d := newTestDeps()
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentPause, "пауза", nil), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, res.Status)
	assert.Zero(t, res.StepsCompleted)
	assert.Equal(t, "Пауза.", res.Response)
}

func TestOrchestrateIntent_CapabilityPanic(t *testing.T) {
	d := newTestDeps()
	d.device.OpenAppFunc = func(ctx context.Context, userID, app string) (*domain.AppLaunch, error) {
		panic("boom")
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOpenApp, "открой браузер",
		domain.Slots{domain.SlotQuery: "браузер"}), "user-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, res.Status)
	snap, _ := o.PlanStatus(res.PlanID)
	assert.Contains(t, snap.Steps[0].Error, "panicked")
}

func TestOrchestrateIntent_Unauthorized(t *testing.T) {
	d := newTestDeps()
	d.authz.CanExecuteFunc = func(ctx context.Context, userID string, intent domain.Intent) (bool, error) {
		return false, nil
	}
	var checked bool
	d.limiter.CheckFunc = func(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error) {
		checked = true
		return domain.RateDecision{Allowed: true}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentOpenApp, "открой браузер", nil), "guest-1")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, checked)
	assert.Zero(t, o.registry.len())
	assert.Empty(t, d.events.Published())
}

func TestOrchestrateIntent_RateLimited(t *testing.T) {
	d := newTestDeps()
	reset := time.Now().Add(30 * time.Second)
	d.limiter.CheckFunc = func(ctx context.Context, userID string, intent domain.Intent) (domain.RateDecision, error) {
		return domain.RateDecision{Allowed: false, ResetAt: reset}, nil
	}
	o := newTestOrchestrator(t, Config{}, d)

	_, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentChatAnswer, "что нового", nil), "user-1")

	require.ErrorIs(t, err, domain.ErrRateLimited)
	var rl *domain.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, reset, rl.ResetAt)
	assert.Zero(t, o.registry.len())
}

func TestOrchestrateIntent_RoutingError(t *testing.T) {
	d := newTestDeps()
	table := CapabilityTable(d.capabilities())
	delete(table, domain.CapSearchJobs)

	o := New(Config{}, &Router{table: table}, nil, nil, nil, newTestLogger())
	t.Cleanup(o.Close)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentHHSearch, "найди работу", nil), "user-1")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrRouting)
	var re *domain.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.ServiceHHAPI, re.Service)
}

func TestOrchestrateIntent_PublishesPlanFinished(t *testing.T) {
	d := newTestDeps()
	o := newTestOrchestrator(t, Config{}, d)

	res, err := o.OrchestrateIntent(context.Background(), intentResult(domain.IntentChatAnswer, "как дела", nil), "user-1")
	require.NoError(t, err)

	events := d.events.Published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventPlanFinished, events[0].Type)
	assert.Equal(t, res.PlanID, events[0].PlanID)
	assert.Equal(t, "completed", events[0].Payload["status"])
}

func TestPlanStatus_NotFound(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, newTestDeps())

	_, err := o.PlanStatus("missing")
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestNewRouter_RejectsIncompleteTable(t *testing.T) {
	d := newTestDeps()
	caps := d.capabilities()
	caps.Translator = nil

	_, err := NewRouter(CapabilityTable(caps))

	require.ErrorIs(t, err, domain.ErrRouting)
	assert.Contains(t, err.Error(), "translation.translate_text")
}
