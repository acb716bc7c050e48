package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/ports"
)

// PlanHandler serves plan creation and status.
type PlanHandler struct {
	orchestrator ports.IntentOrchestrator
	log          *zap.Logger
}

// NewPlanHandler wires the plan endpoints.
func NewPlanHandler(orchestrator ports.IntentOrchestrator, log *zap.Logger) *PlanHandler {
	return &PlanHandler{
		orchestrator: orchestrator,
		log:          log,
	}
}

// Create handles POST /plans for callers that classify on their side.
func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var req domain.IntentResult
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	intent, ok := domain.ParseIntent(string(req.Intent))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown intent "+string(req.Intent))
	}
	req.Intent = intent
	if !(req.Confidence >= 0 && req.Confidence <= 1) {
		return fiber.NewError(fiber.StatusBadRequest, "confidence must be between 0 and 1")
	}
	if req.Slots == nil {
		req.Slots = domain.Slots{}
	}

	userID, _ := c.Locals(middleware.LocalUserID).(string)
	result, err := h.orchestrator.OrchestrateIntent(c.UserContext(), req, userID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Get handles GET /plans/:id. Plans of other users look like missing ones
// unless the caller is the owner.
func (h *PlanHandler) Get(c *fiber.Ctx) error {
	snap, err := h.orchestrator.PlanStatus(c.Params("id"))
	if err != nil {
		if !errors.Is(err, domain.ErrPlanNotFound) {
			h.log.Error("Failed to read plan status", zap.String("plan_id", c.Params("id")), zap.Error(err))
		}
		return err
	}

	user, _ := middleware.CurrentUser(c)
	if user == nil || (user.Role != domain.UserRoleOwner && user.ID != snap.UserID) {
		return fiber.NewError(fiber.StatusNotFound, "plan not found")
	}
	return c.JSON(snap)
}
