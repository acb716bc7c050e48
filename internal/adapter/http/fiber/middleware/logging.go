package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// RequestLogger logs one line per request and records its latency. It must
// run after the request id middleware and before the error handler writes the
// final status, so the status is taken from the returned error when set.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		took := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status, _ = StatusOf(err)
		}

		route := c.Route().Path
		telemetry.HTTPRequestDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(took.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", took),
			zap.String("request_id", requestID(c)),
		}
		if userID, ok := c.Locals(LocalUserID).(string); ok {
			fields = append(fields, zap.String("user_id", userID))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("HTTP request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
		return err
	}
}
