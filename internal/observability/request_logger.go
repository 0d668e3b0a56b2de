package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// RequestLogger logs each request with latency and records request metrics.
// Path and method are copied before use: the Prometheus registry retains
// label values past the request, and fiber reuses the backing buffer.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := utils.CopyString(c.Path())
		method := utils.CopyString(c.Method())

		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		RecordRequest(path, method, status, duration)

		logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)
		return err
	}
}
