package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// StatusOf maps an error returned by a handler to its HTTP status and code.
func StatusOf(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusOK, ""
	case errors.As(err, &fe):
		return fe.Code, codeFor(fe.Code)
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrPlanNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRouting):
		return fiber.StatusInternalServerError, "routing_error"
	case circuitbreaker.IsCircuitOpen(err):
		return fiber.StatusServiceUnavailable, "service_unavailable"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthenticated"
	case fiber.StatusForbidden:
		return "unauthorized"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusServiceUnavailable:
		return "service_unavailable"
	}
	if status >= 500 {
		return "internal_error"
	}
	return "error"
}

// ErrorHandler renders every error as ErrorResponse with the status from StatusOf.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := StatusOf(err)
		resp := ErrorResponse{Error: err.Error(), Code: code}

		var limited *domain.RateLimitedError
		if errors.As(err, &limited) {
			resp.RetryAfter = limited.RetryAfter(time.Now())
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(resp.RetryAfter))
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("Internal Server Error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.String("request_id", requestID(c)),
			)
			if code == "internal_error" {
				resp.Error = "internal server error"
			}
		}

		return c.Status(status).JSON(resp)
	}
}
