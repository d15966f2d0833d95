package api

import (
	"log/slog"
	"time"

	"filegate/internal/server/gate"

	"github.com/labstack/echo/v4"
)

// GateMiddleware rejects requests whose handshake headers do not match.
func GateMiddleware(g *gate.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !g.Authorize(req.Header, req.Host) {
				slog.Warn("gate rejected request", "path", c.Path(), "ip", c.RealIP())
				return forbidden(c)
			}
			return next(c)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
// Server errors log at ERROR, client errors at WARN.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			level := slog.LevelInfo
			switch {
			case res.Status >= 500:
				level = slog.LevelError
			case res.Status >= 400:
				level = slog.LevelWarn
			}

			slog.Log(req.Context(), level, "request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return nil
		}
	}
}
