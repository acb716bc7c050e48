package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/ports"
	"github.com/seu-repo/ai-maga/internal/service/auth"
)

const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
	LocalUser     = "user"
)

// AuthRequired validates the bearer token and puts the caller into Locals and
// into the request's user context, where the authorizer picks up the role.
func AuthRequired(validator ports.TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header format")
		}

		user, err := validator.ValidateToken(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUserRole, user.Role)
		c.Locals(LocalUser, user)
		c.SetUserContext(auth.WithUser(c.UserContext(), user))

		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(LocalUser).(*domain.User)
	return user, ok && user != nil
}
