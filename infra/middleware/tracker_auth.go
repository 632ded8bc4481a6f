package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tracker_server/core/port/in"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "tracker_session"

// SessionVerifier validates a session token.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*in.SessionClaims, error)
}

// SessionAuth requires a valid session from the cookie or a Bearer header.
// On success the user id and claims are stored in Locals and in the user
// context.
func SessionAuth(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return apperr.AuthRequired("Not logged in")
		}

		claims, err := verifier.VerifySession(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("session", claims)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.UserIDKey, claims.UserID))
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(SessionCookie)
}

// GetUserID returns the authenticated user id.
func GetUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return "", apperr.AuthRequired("Not logged in")
	}
	return userID, nil
}

// GetSession returns the verified session claims or nil.
func GetSession(c *fiber.Ctx) *in.SessionClaims {
	claims, _ := c.Locals("session").(*in.SessionClaims)
	return claims
}
