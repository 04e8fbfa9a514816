package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/discount-notifier/internal/metrics"
)

// Recovery returns Echo middleware that turns a handler panic into a 500
// and logs it with the stack. http.ErrAbortHandler is re-raised so the
// server can abort the connection.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				metrics.HTTPPanicsTotal.Inc()

				Logger(c, log).Error("panic recovered",
					"error", fmt.Sprint(r),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(buf[:n]),
				)

				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]string{
					"error":      "internal server error",
					"request_id": RequestID(c),
				})
			}()
			return next(c)
		}
	}
}
