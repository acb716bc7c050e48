package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/mocks"
	"github.com/seu-repo/ai-maga/internal/service/auth"
)

type testDeps struct {
	detector     *mocks.MockIntentDetector
	orchestrator *mocks.MockIntentOrchestrator
	events       *mocks.MockEventPublisher
	users        map[string]*domain.User
}

func newTestApp(t *testing.T) (*fiber.App, *testDeps) {
	t.Helper()

	deps := &testDeps{
		detector:     &mocks.MockIntentDetector{},
		orchestrator: &mocks.MockIntentOrchestrator{},
		events:       &mocks.MockEventPublisher{},
		users: map[string]*domain.User{
			"owner-token": {ID: "owner", Role: domain.UserRoleOwner},
			"user-token":  {ID: "user-1", Role: domain.UserRoleUser},
		},
	}
	validator := &mocks.MockTokenValidator{
		ValidateTokenFunc: func(ctx context.Context, token string) (*domain.User, error) {
			if u, ok := deps.users[token]; ok {
				return u, nil
			}
			return nil, auth.ErrInvalidToken
		},
	}

	log := zap.NewNop()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	Register(app.Group("/api/v1"),
		middleware.AuthRequired(validator),
		NewIntentHandler(deps.detector, deps.orchestrator, deps.events, 0.5, log),
		NewPlanHandler(deps.orchestrator, log),
	)
	return app, deps
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, http.Header, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, data
}

func TestDetect(t *testing.T) {
	app, deps := newTestApp(t)
	deps.detector.DetectIntentFunc = func(ctx context.Context, u domain.Utterance) domain.IntentResult {
		assert.Equal(t, "user-1", u.UserID)
		assert.Equal(t, domain.SourceHTTP, u.Source)

		user, ok := auth.UserFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "user-1", user.ID)

		return domain.IntentResult{Intent: domain.IntentOCRTranslate, Confidence: 0.8, RawText: u.Text, Strategy: domain.StrategyRule, Slots: domain.Slots{}}
	}

	status, _, body := do(t, app, "POST", "/api/v1/intents/detect", "user-token", `{"text":"  переведи экран "}`)

	require.Equal(t, fiber.StatusOK, status)
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, domain.IntentOCRTranslate, resp.Intent)
	assert.Equal(t, "переведи экран", resp.RawText)
	assert.True(t, resp.Committed)

	events := deps.events.Published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventIntentDetected, events[0].Type)
	assert.Equal(t, "user-1", events[0].UserID)
}

func TestDetect_FallbackIsNotCommitted(t *testing.T) {
	app, _ := newTestApp(t)

	status, _, body := do(t, app, "POST", "/api/v1/intents/detect", "user-token", `{"text":"абв"}`)

	require.Equal(t, fiber.StatusOK, status)
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, domain.IntentFallback, resp.Intent)
	assert.False(t, resp.Committed)
}

func TestDetect_BadRequests(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no token", "", `{"text":"hi"}`, fiber.StatusUnauthorized},
		{"bad token", "nope", `{"text":"hi"}`, fiber.StatusUnauthorized},
		{"empty text", "user-token", `{"text":"   "}`, fiber.StatusBadRequest},
		{"malformed", "user-token", `{"text":`, fiber.StatusBadRequest},
		{"too long", "user-token", `{"text":"` + strings.Repeat("a", maxUtteranceLen+1) + `"}`, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, body := do(t, app, "POST", "/api/v1/intents/detect", tt.token, tt.body)
			assert.Equal(t, tt.status, status)

			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.NotEmpty(t, resp.Code)
		})
	}
}

func TestExecute(t *testing.T) {
	app, deps := newTestApp(t)
	deps.orchestrator.OrchestrateIntentFunc = func(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error) {
		assert.Equal(t, "owner", userID)
		return &domain.PlanResult{PlanID: "p1", Intent: intent.Intent, Status: domain.PlanCompleted, StepsCompleted: 1, Response: "Привет!"}, nil
	}

	status, _, body := do(t, app, "POST", "/api/v1/intents/execute", "owner-token", `{"text":"как дела"}`)

	require.Equal(t, fiber.StatusOK, status)
	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "p1", resp.Plan.PlanID)
	assert.Equal(t, "Привет!", resp.Plan.Response)
}

func TestExecute_ErrorMapping(t *testing.T) {
	app, deps := newTestApp(t)

	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter bool
	}{
		{"unauthorized", &domain.UnauthorizedError{UserID: "user-1", Intent: domain.IntentOpenApp}, fiber.StatusForbidden, "unauthorized", false},
		{"rate limited", &domain.RateLimitedError{UserID: "user-1", Intent: domain.IntentChatAnswer, ResetAt: time.Now().Add(30 * time.Second)}, fiber.StatusTooManyRequests, "rate_limited", true},
		{"routing", &domain.RoutingError{Service: "llm", Action: "dance"}, fiber.StatusInternalServerError, "routing_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps.orchestrator.OrchestrateIntentFunc = func(context.Context, domain.IntentResult, string) (*domain.PlanResult, error) {
				return nil, tt.err
			}

			status, header, body := do(t, app, "POST", "/api/v1/intents/execute", "user-token", `{"text":"открой telegram"}`)

			assert.Equal(t, tt.status, status)
			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, tt.code, resp.Code)
			if tt.retryAfter {
				assert.NotEmpty(t, header.Get("Retry-After"))
				assert.Positive(t, resp.RetryAfter)
				assert.LessOrEqual(t, resp.RetryAfter, 30)
			}
		})
	}
}

func TestCreatePlan(t *testing.T) {
	app, deps := newTestApp(t)
	deps.orchestrator.OrchestrateIntentFunc = func(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error) {
		assert.Equal(t, domain.IntentHHSearch, intent.Intent)
		assert.Equal(t, "golang", intent.Slots[domain.SlotQuery])
		return &domain.PlanResult{PlanID: "p2", Intent: intent.Intent, Status: domain.PlanCompleted}, nil
	}

	status, _, body := do(t, app, "POST", "/api/v1/plans", "user-token",
		`{"intent":"hh_search","confidence":0.9,"slots":{"query":"golang"},"raw_text":"найди вакансии golang"}`)

	require.Equal(t, fiber.StatusOK, status)
	var resp domain.PlanResult
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "p2", resp.PlanID)

	status, _, _ = do(t, app, "POST", "/api/v1/plans", "user-token", `{"intent":"fly_to_moon"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreatePlan_ConfidenceOutOfRange(t *testing.T) {
	app, deps := newTestApp(t)
	var called atomic.Bool
	deps.orchestrator.OrchestrateIntentFunc = func(context.Context, domain.IntentResult, string) (*domain.PlanResult, error) {
		called.Store(true)
		return &domain.PlanResult{PlanID: "p3", Status: domain.PlanCompleted}, nil
	}

	for _, confidence := range []string{"1.5", "-0.1", "100"} {
		t.Run(confidence, func(t *testing.T) {
			status, _, body := do(t, app, "POST", "/api/v1/plans", "user-token",
				`{"intent":"chat_answer","confidence":`+confidence+`,"raw_text":"привет"}`)

			assert.Equal(t, fiber.StatusBadRequest, status)
			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, "bad_request", resp.Code)
			assert.Contains(t, resp.Error, "confidence")
		})
	}
	assert.False(t, called.Load())

	status, _, _ := do(t, app, "POST", "/api/v1/plans", "user-token", `{"intent":"chat_answer","confidence":1,"raw_text":"привет"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, called.Load())
}

func TestGetPlan(t *testing.T) {
	app, deps := newTestApp(t)
	deps.orchestrator.PlanStatusFunc = func(planID string) (domain.PlanSnapshot, error) {
		if planID != "p1" {
			return domain.PlanSnapshot{}, domain.ErrPlanNotFound
		}
		return domain.PlanSnapshot{PlanID: "p1", UserID: "user-1", Status: domain.PlanCompleted}, nil
	}

	status, _, body := do(t, app, "GET", "/api/v1/plans/p1", "user-token", "")
	require.Equal(t, fiber.StatusOK, status)
	var snap domain.PlanSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, domain.PlanCompleted, snap.Status)

	status, _, _ = do(t, app, "GET", "/api/v1/plans/p1", "owner-token", "")
	assert.Equal(t, fiber.StatusOK, status, "owner sees every plan")

	deps.users["other-token"] = &domain.User{ID: "user-2", Role: domain.UserRoleUser}
	status, _, _ = do(t, app, "GET", "/api/v1/plans/p1", "other-token", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _, _ = do(t, app, "GET", "/api/v1/plans/missing", "user-token", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
