package middleware

import (
	"time"

	"tableside/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// ContextMiddleware injects the request id as the correlation id into the
// request context so deep layers log it without threading it by hand.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		rid, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		if rid == "" {
			rid = observability.GenerateCorrelationID()
		}
		c.SetUserContext(observability.WithCorrelationID(ctx, rid))
		return c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		observability.GlobalLogger.InfoContext(c.UserContext(), "http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}
