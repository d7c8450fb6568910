package middleware

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger logs each HTTP request as one JSON object per line on stdout.
// Fields:
// - ts (RFC3339, UTC)
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.UTC)
}

// LoggerWithWriter is Logger with an explicit output and timestamp location,
// used by tests to capture and decode the log line.
//
// Each request marshals into its own buffer and hits the writer with a single
// Write: handlers run concurrently and a shared json.Encoder is not safe for
// that.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// Collect fields after handler executed to capture final status
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := c.Response().StatusCode()
		latency := float64(time.Since(start).Milliseconds())

		line, merr := json.Marshal(map[string]any{
			"ts":         time.Now().In(loc).Format(time.RFC3339),
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    latency,
		})
		if merr == nil {
			_, _ = w.Write(append(line, '\n'))
		}

		return err
	}
}
