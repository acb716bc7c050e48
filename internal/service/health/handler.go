package health

import (
	"github.com/gofiber/fiber/v2"
)

// FiberHandler exposes the health service over HTTP.
type FiberHandler struct {
	service *Service
}

func NewFiberHandler(service *Service) *FiberHandler {
	return &FiberHandler{service: service}
}

// RegisterRoutes mounts the health and readiness routes, including the Kubernetes-style aliases.
func (h *FiberHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/healthz", h.Health) // Kubernetes alias
	app.Get("/ready", h.Ready)
	app.Get("/readyz", h.Ready)
	app.Get("/live", h.Health)
	app.Get("/livez", h.Health)
}

func (h *FiberHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.Health(c.UserContext()))
}

func (h *FiberHandler) Ready(c *fiber.Ctx) error {
	response := h.service.Ready(c.UserContext())

	status := fiber.StatusOK
	if !response.Ready {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(response)
}
