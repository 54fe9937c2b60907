package api

import (
	"strings"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store the session user in the Fiber context.
	UserContextKey = "user"

	// SessionCookie is the cookie that carries the session token.
	SessionCookie = "jwt"
)

var errNoToken = apperr.Authorization("no token provided")

// AuthMiddleware resolves the session token to a user and stores the
// profile under UserContextKey. The token is read from the jwt cookie,
// then from an "Authorization: Bearer" header.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return writeError(c, errNoToken)
		}

		user, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return writeError(c, err)
		}

		c.Locals(UserContextKey, user)
		return c.Next()
	}
}

func sessionToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// currentUser returns the profile stored by AuthMiddleware.
func currentUser(c *fiber.Ctx) *domain.Profile {
	user, _ := c.Locals(UserContextKey).(*domain.Profile)
	return user
}
