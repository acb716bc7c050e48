package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/seu-repo/ai-maga/pkg/config"
)

const (
	defaultAllowMethods  = "GET,POST,OPTIONS"
	defaultAllowHeaders  = "Origin,Content-Type,Accept,Authorization,X-Request-ID"
	defaultExposeHeaders = "Retry-After,X-Request-ID"
	defaultCORSMaxAge    = 86400
)

// NewCORS creates a CORS middleware from application config. With CORS
// disabled it is a pass-through.
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	maxAge := defaultCORSMaxAge
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}

	return fibercors.New(fibercors.Config{
		AllowOrigins:     joinOr(cfg.AllowedOrigins, "*"),
		AllowMethods:     joinOr(cfg.AllowedMethods, defaultAllowMethods),
		AllowHeaders:     joinOr(cfg.AllowedHeaders, defaultAllowHeaders),
		ExposeHeaders:    joinOr(cfg.ExposeHeaders, defaultExposeHeaders),
		AllowCredentials: cfg.Credentials,
		MaxAge:           maxAge,
	})
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ",")
}
