package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careops/clinic-api/pkg/problem"
)

// Logger logs one line per request. Expected API errors carry a problem
// document and are logged at warn with the problem type and status;
// anything else that escapes a handler logs as an error.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			// On an error return the response is not committed yet, so the
			// problem's status is the one the client will see.
			status := c.Response().Status
			evt := logger.Info()
			if err != nil {
				if p := problem.From(err); p != nil {
					evt = logger.Warn().Str("problem_type", p.Type)
					status = p.Status
				} else {
					evt = logger.Error().Err(err)
				}
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
