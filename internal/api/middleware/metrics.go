// Package middleware provides Echo middleware for the discount-notifier API.
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/discount-notifier/internal/metrics"
)

// probeGauges maps probe paths to their up/down gauge. Probes and scrapes
// are kept out of the request histogram.
var probeGauges = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

const metricsPath = "/metrics"

// unmatchedRoute labels requests that matched no route, so arbitrary URLs
// cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics returns Echo middleware that records request duration, count and
// in-flight requests, labelled by route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == metricsPath {
				return next(c)
			}
			if gauge, ok := probeGauges[path]; ok {
				err := next(c)
				setProbe(gauge, c.Response().Status)
				return err
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			labels := []string{c.Request().Method, route, strconv.Itoa(status)}

			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()

			return err
		}
	}
}

func setProbe(gauge prometheus.Gauge, status int) {
	if status >= 200 && status < 300 {
		gauge.Set(1)
		return
	}
	gauge.Set(0)
}
