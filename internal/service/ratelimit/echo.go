package ratelimit

import (
	"github.com/labstack/echo/v4"

	xhttp "PatternLab/pkg/http"
)

// Middleware limits requests per client IP. A nil limiter disables it.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil || l.Allow(c.RealIP()) {
				return next(c)
			}
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
	}
}
