package middleware

import (
	"strconv"
	"time"

	"furusatoReco/business/feed"
	"furusatoReco/pkg/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID takes X-Request-ID from the request or mints one, echoes it in
// the response and stores it in the request context as the trace id.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			req := c.Request()
			c.SetRequest(req.WithContext(feed.WithTraceID(req.Context(), rid)))
			return next(c)
		}
	}
}

// Metrics records latency and count per route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			metrics.HTTPRequestLatency.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			metrics.HTTPRequests.WithLabelValues(method, route, status).Inc()
			return nil
		}
	}
}
