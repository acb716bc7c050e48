package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

var errServerFailure = errors.New("handler failed with 5xx")

// CircuitBreaker sheds load with 503 while the named breaker is open. Only
// server-side failures count; denials and bad requests do not trip it.
func CircuitBreaker(manager *circuitbreaker.Manager, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cb := manager.Get(name)

		var handlerErr error
		_, err := cb.Execute(func() (interface{}, error) {
			handlerErr = c.Next()
			status := c.Response().StatusCode()
			if handlerErr != nil {
				status, _ = StatusOf(handlerErr)
			}
			if status >= fiber.StatusInternalServerError {
				return nil, errServerFailure
			}
			return nil, nil
		})

		if circuitbreaker.IsCircuitOpen(err) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "service temporarily unavailable")
		}
		return handlerErr
	}
}
