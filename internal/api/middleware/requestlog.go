package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/discount-notifier/pkg/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// quietPaths are logged at debug level; probes and scrapes would drown the
// run logs otherwise.
var quietPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
	"/readyz":  {},
}

// RequestLog returns Echo middleware that logs one line per request. It
// reuses the caller's X-Request-ID or generates one, echoes it back, and
// stores a request-scoped logger on the context for handlers.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set(logger.KeyRequestID, reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			reqLog := log.With(logger.KeyRequestID, reqID)
			c.Set(loggerKey, reqLog)

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			status := c.Response().Status
			reqLog.Log(c.Request().Context(), levelFor(c.Request().URL.Path, status), "request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route", c.Path(),
				"status", status,
				"bytes_out", c.Response().Size,
				"duration_ms", time.Since(start).Milliseconds(),
			)

			return nil
		}
	}
}

// RequestID returns the request ID assigned by RequestLog, if any.
func RequestID(c echo.Context) string {
	id, _ := c.Get(logger.KeyRequestID).(string)
	return id
}

// Logger returns the request-scoped logger, or fallback outside RequestLog.
func Logger(c echo.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := c.Get(loggerKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	if _, quiet := quietPaths[path]; quiet {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
