package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger writes one structured line per request once the
// handler (and the error handler) have produced a response.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			res := c.Response()
			attrs := []any{
				"method", c.Request().Method,
				"path", c.Path(),
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
			}
			if uid, ok := c.Get("user_id").(uint64); ok {
				attrs = append(attrs, "user_id", uid)
			}
			logger.Info("http request", attrs...)
			return nil
		}
	}
}
