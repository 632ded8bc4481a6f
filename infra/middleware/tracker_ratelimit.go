package middleware

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tracker_server/pkg/apperr"
	"tracker_server/pkg/ratelimit"
)

// RateLimit limits requests per authenticated user, falling back to the
// client IP. scope separates the budgets of different route groups.
func RateLimit(limiter ratelimit.Limiter, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			key = userID
		}

		allowed, wait := limiter.Allow(c.UserContext(), scope+":"+key)
		if !allowed {
			if wait > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			return apperr.RateLimited()
		}
		return c.Next()
	}
}
