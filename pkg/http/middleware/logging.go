package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"PatternLab/pkg/logger"
)

// RequestLogging logs every request at debug level, and server errors at warn.
// Paths in skip are not logged.
func RequestLogging(l *logger.Logger, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Request().URL.Path]; ok {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			req, res := c.Request(), c.Response()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", c.Path()),
				logger.String("query", req.URL.RawQuery),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Int64("bytes_out", res.Size),
				logger.Duration("duration_ms", time.Since(start)),
			}
			if res.Status >= http.StatusInternalServerError {
				l.Warn("http request failed", append(fields, logger.Error(err))...)
				return err
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
