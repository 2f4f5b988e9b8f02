package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs one line per request. Errors returned by the chain are rendered through the
// app's error handler first so the logged status matches the response.
func RequestLogger(logger *slog.Logger, skipPrefixes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, p := range skipPrefixes {
			if strings.HasPrefix(path, p) {
				return c.Next()
			}
		}

		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		level := slog.LevelInfo
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= fiber.StatusBadRequest {
			level = slog.LevelWarn
		}
		logger.Log(c.UserContext(), level, "request",
			"method", c.Method(),
			"path", path,
			"status", status,
			"took", time.Since(start),
			"ip", c.IP(),
		)
		return nil
	}
}
