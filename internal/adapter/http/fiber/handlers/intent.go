package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/ports"
)

const (
	maxUtteranceLen     = 4096
	eventPublishTimeout = 2 * time.Second
)

// IntentHandler serves classification and execution of utterances.
type IntentHandler struct {
	detector     ports.IntentDetector
	orchestrator ports.IntentOrchestrator
	events       ports.EventPublisher
	threshold    float64
	log          *zap.Logger
}

// NewIntentHandler wires the intent endpoints. events may be nil.
func NewIntentHandler(detector ports.IntentDetector, orchestrator ports.IntentOrchestrator, events ports.EventPublisher, threshold float64, log *zap.Logger) *IntentHandler {
	return &IntentHandler{
		detector:     detector,
		orchestrator: orchestrator,
		events:       events,
		threshold:    threshold,
		log:          log,
	}
}

// DetectRequest is the body of both intent endpoints.
type DetectRequest struct {
	Text     string                 `json:"text"`
	Source   domain.UtteranceSource `json:"source"`
	Language string                 `json:"language"`
}

type DetectResponse struct {
	domain.IntentResult
	// Committed is false when the caller should ask for clarification.
	Committed bool `json:"committed"`
}

type ExecuteResponse struct {
	Intent DetectResponse     `json:"intent"`
	Plan   *domain.PlanResult `json:"plan"`
}

// Detect handles POST /intents/detect.
func (h *IntentHandler) Detect(c *fiber.Ctx) error {
	result, err := h.detect(c)
	if err != nil {
		return err
	}
	return c.JSON(DetectResponse{IntentResult: result, Committed: result.Committed(h.threshold)})
}

// Execute handles POST /intents/execute: classify, then run the plan.
func (h *IntentHandler) Execute(c *fiber.Ctx) error {
	result, err := h.detect(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals(middleware.LocalUserID).(string)
	plan, err := h.orchestrator.OrchestrateIntent(c.UserContext(), result, userID)
	if err != nil {
		return err
	}

	return c.JSON(ExecuteResponse{
		Intent: DetectResponse{IntentResult: result, Committed: result.Committed(h.threshold)},
		Plan:   plan,
	})
}

func (h *IntentHandler) detect(c *fiber.Ctx) (domain.IntentResult, error) {
	var req DetectRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.IntentResult{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return domain.IntentResult{}, fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	if len(req.Text) > maxUtteranceLen {
		return domain.IntentResult{}, fiber.NewError(fiber.StatusBadRequest, "text is too long")
	}
	if req.Source == "" {
		req.Source = domain.SourceHTTP
	}

	userID, _ := c.Locals(middleware.LocalUserID).(string)
	result := h.detector.DetectIntent(c.UserContext(), domain.Utterance{
		Text:      req.Text,
		Source:    req.Source,
		Language:  req.Language,
		Timestamp: time.Now(),
		UserID:    userID,
	})

	h.publishDetected(c.UserContext(), userID, req.Source, result)
	return result, nil
}

func (h *IntentHandler) publishDetected(ctx context.Context, userID string, source domain.UtteranceSource, result domain.IntentResult) {
	if h.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event := domain.Event{
		ID:     uuid.NewString(),
		Type:   domain.EventIntentDetected,
		UserID: userID,
		Intent: result.Intent,
		Payload: map[string]any{
			"confidence": result.Confidence,
			"strategy":   string(result.Strategy),
			"source":     string(source),
		},
		OccurredAt: time.Now(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		h.log.Warn("Failed to publish intent event", zap.String("user_id", userID), zap.Error(err))
	}
}
