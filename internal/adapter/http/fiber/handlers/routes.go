package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Register mounts the API under router. Every route requires auth.
func Register(router fiber.Router, auth fiber.Handler, intents *IntentHandler, plans *PlanHandler) {
	api := router.Group("", auth)

	api.Post("/intents/detect", intents.Detect)
	api.Post("/intents/execute", intents.Execute)

	api.Post("/plans", plans.Create)
	api.Get("/plans/:id", plans.Get)
}
