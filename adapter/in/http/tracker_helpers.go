package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"
)

// requireUser extracts the authenticated user id set by the session middleware.
func requireUser(c *fiber.Ctx) (string, error) {
	return middleware.GetUserID(c)
}

// parseBody decodes the JSON request body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return apperr.BadRequest("request body required")
	}
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}

// queryIntInRange parses an optional integer query parameter. Missing means def.
func queryIntInRange(c *fiber.Ctx, key string, def, min, max int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, apperr.InvalidInput(key, "must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}
